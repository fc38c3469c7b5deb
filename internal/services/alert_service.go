package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/metrics"
	"github.com/ucgmax/webhook-receiver/internal/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// IdempotencyKeyHeader takes precedence over the body's idempotency_key.
	IdempotencyKeyHeader = "Idempotency-Key"

	// MaxExportRows caps one export regardless of filters.
	MaxExportRows = 10000

	// StatusAccepted is returned for every stored webhook.
	StatusAccepted = "accepted"

	maxIdempotencyKeyLength = 255
)

// Notifier is told about every stored alert. Implementations must not block.
type Notifier interface {
	Notify(alert *database.Alert)
}

// IngestResult is the outcome of a stored webhook.
type IngestResult struct {
	Status  string `json:"status"`
	AlertID string `json:"alert_id"`
	ID      uint   `json:"-"`
}

// AlertService implements webhook ingestion and alert queries
type AlertService struct {
	store    *database.AlertStore
	verifier middleware.WebhookVerifier
	sources  map[string]bool
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewAlertService creates a new AlertService. sources is the allow-list of webhook
// path tags; an empty list allows only database.DefaultWebhookSource.
func NewAlertService(store *database.AlertStore, verifier middleware.WebhookVerifier, sources []string, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(sources))
	for _, src := range sources {
		if src = strings.TrimSpace(src); src != "" {
			allowed[src] = true
		}
	}
	if len(allowed) == 0 {
		allowed[database.DefaultWebhookSource] = true
	}
	return &AlertService{
		store:    store,
		verifier: verifier,
		sources:  allowed,
		logger:   logger,
		now:      time.Now,
	}
}

// SetNotifier installs an optional notifier for stored alerts
func (s *AlertService) SetNotifier(n Notifier) {
	s.notifier = n
}

// HasSource reports whether source is an accepted webhook path tag
func (s *AlertService) HasSource(source string) bool {
	return s.sources[source]
}

// Ingest authenticates, validates, deduplicates and stores one webhook.
// Errors wrap ErrUnauthorized, ErrUnknownSource, ErrInvalidPayload or ErrDuplicate;
// anything else is a store failure.
func (s *AlertService) Ingest(ctx context.Context, source string, body []byte, headers http.Header) (*IngestResult, error) {
	if s.verifier == nil || !s.verifier.Verify(body, headers) {
		s.record(source, metrics.OutcomeUnauthorized)
		return nil, ErrUnauthorized
	}
	if !s.HasSource(source) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		s.record(source, metrics.OutcomeInvalidPayload)
		return nil, err
	}

	key := strings.TrimSpace(headers.Get(IdempotencyKeyHeader))
	if key == "" {
		key = strings.TrimSpace(env.IdempotencyKey)
	}
	if len(key) > maxIdempotencyKeyLength {
		s.record(source, metrics.OutcomeInvalidPayload)
		return nil, &ValidationError{Fields: map[string]string{
			"idempotency_key": fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength),
		}}
	}

	if key != "" {
		exists, err := s.store.ExistsByIdempotencyKey(ctx, key)
		if err != nil {
			s.record(source, metrics.OutcomeError)
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if exists {
			s.record(source, metrics.OutcomeDuplicate)
			return nil, ErrDuplicate
		}
	}

	alert, err := s.buildAlert(source, key, env, body)
	if err != nil {
		s.record(source, metrics.OutcomeInvalidPayload)
		return nil, err
	}

	if err := s.store.Create(ctx, alert); err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			s.record(source, metrics.OutcomeDuplicate)
			return nil, ErrDuplicate
		}
		s.record(source, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to store alert: %w", err)
	}

	s.record(source, metrics.OutcomeAccepted)
	s.logger.Info("alert accepted",
		zap.Uint("id", alert.ID),
		zap.String("alert_id", alert.AlertID),
		zap.String("webhook_source", source),
		zap.String("severity", alert.Severity),
		middleware.RequestIDField(ctx))

	if s.notifier != nil {
		s.notifier.Notify(alert)
	}

	return &IngestResult{Status: StatusAccepted, AlertID: alert.AlertID, ID: alert.ID}, nil
}

func (s *AlertService) buildAlert(source, key string, env *AlertEnvelope, body []byte) (*database.Alert, error) {
	now := s.now().UTC()

	alert := &database.Alert{
		AlertID:       env.AlertID,
		WebhookSource: source,
		Source:        env.Source,
		Device:        env.Device,
		Severity:      env.Severity,
		AlertType:     env.AlertType,
		Timestamp:     env.Timestamp,
		Summary:       env.Summary,
		Details:       database.JSONB(env.Details),
		RawPayload:    database.JSONB(env.RawPayload),
		Extra:         database.JSONB(env.Extra),
		ReceivedAt:    now,
		CreatedAt:     now,
	}
	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}
	if alert.Timestamp == nil {
		alert.Timestamp = &now
	}
	if alert.RawPayload == nil {
		raw, err := decodeBodyObject(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		alert.RawPayload = raw
	}
	if key != "" {
		alert.IdempotencyKey = &key
	}
	return alert, nil
}

func (s *AlertService) record(source, outcome string) {
	if s.HasSource(source) {
		metrics.RecordWebhook(source, outcome)
	}
}

// ValidateFilter rejects ranges where start is after end
func ValidateFilter(filter database.AlertFilter) error {
	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		return fmt.Errorf("%w: start must not be after end", ErrInvalidQuery)
	}
	return nil
}

// List returns one page of matching alerts, newest first, and the total match count
func (s *AlertService) List(ctx context.Context, filter database.AlertFilter, offset, limit int) ([]database.Alert, int64, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	alerts, err := s.store.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, total, nil
}

// Export returns matching alerts, newest first, capped at MaxExportRows
func (s *AlertService) Export(ctx context.Context, filter database.AlertFilter) ([]database.Alert, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}
	alerts, err := s.store.List(ctx, filter, 0, MaxExportRows)
	if err != nil {
		return nil, fmt.Errorf("failed to export alerts: %w", err)
	}
	return alerts, nil
}

// Get returns one alert by surrogate id
func (s *AlertService) Get(ctx context.Context, id uint) (*database.Alert, error) {
	alert, err := s.store.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return alert, nil
}

// Delete removes one alert; user is the authenticated admin, for the audit log
func (s *AlertService) Delete(ctx context.Context, id uint, user string) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert %d: %w", id, err)
	}
	if !deleted {
		return ErrNotFound
	}
	s.logger.Info("alert deleted", zap.Uint("id", id), zap.String("user", user), middleware.RequestIDField(ctx))
	return nil
}

// Metrics returns total, per-severity and last-24h counts, recomputed on every call
func (s *AlertService) Metrics(ctx context.Context) (*database.AlertMetrics, error) {
	m, err := s.store.Metrics(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics: %w", err)
	}
	return m, nil
}
