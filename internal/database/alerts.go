package database

import (
	"context"
	"errors"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateKey is returned by AlertStore.Create when the idempotency key is already stored
var ErrDuplicateKey = errors.New("duplicate idempotency key")

// AlertFilter narrows alert queries. Zero values are ignored; all set fields are ANDed.
type AlertFilter struct {
	Severity      string
	AlertType     string
	Device        string
	WebhookSource string
	Start         *time.Time // inclusive, on timestamp
	End           *time.Time // inclusive, on timestamp
	Query         string     // case-insensitive substring of summary, details or raw_payload
}

// likeEscaper makes LIKE wildcards in a search term match literally. '!' is
// used as the escape character since a backslash is itself an escape in
// MySQL string literals.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Scope returns a gorm scope applying the filter
func (f AlertFilter) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Severity != "" {
			db = db.Where("severity = ?", f.Severity)
		}
		if f.AlertType != "" {
			db = db.Where("alert_type = ?", f.AlertType)
		}
		if f.Device != "" {
			db = db.Where("device = ?", f.Device)
		}
		if f.WebhookSource != "" {
			db = db.Where("webhook_source = ?", f.WebhookSource)
		}
		if f.Start != nil {
			db = db.Where(clause.Gte{Column: clause.Column{Name: "timestamp"}, Value: f.Start.UTC()})
		}
		if f.End != nil {
			db = db.Where(clause.Lte{Column: clause.Column{Name: "timestamp"}, Value: f.End.UTC()})
		}
		if q := strings.TrimSpace(f.Query); q != "" {
			textType := "TEXT"
			if db.Dialector.Name() == DialectMySQL {
				textType = "CHAR"
			}
			pattern := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
			db = db.Where(
				"(LOWER(summary) LIKE ? ESCAPE '!' OR LOWER(CAST(details AS "+textType+")) LIKE ? ESCAPE '!' OR LOWER(CAST(raw_payload AS "+textType+")) LIKE ? ESCAPE '!')",
				pattern, pattern, pattern,
			)
		}
		return db
	}
}

// newestFirst orders by event time, then by id so pages are stable
var newestFirst = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "timestamp"}, Desc: true},
	{Column: clause.Column{Name: "id"}, Desc: true},
}}

// AlertStore owns persistence of the alerts table
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates a new AlertStore
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// DB returns the underlying gorm handle
func (s *AlertStore) DB() *gorm.DB {
	return s.db
}

// Create inserts a new alert. CreatedAt and ReceivedAt are stamped here when unset.
// A unique violation on idempotency_key yields ErrDuplicateKey.
func (s *AlertStore) Create(ctx context.Context, alert *Alert) error {
	now := time.Now().UTC()
	if alert.ReceivedAt.IsZero() {
		alert.ReceivedAt = now
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = alert.ReceivedAt
	}
	if alert.WebhookSource == "" {
		alert.WebhookSource = DefaultWebhookSource
	}

	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		if IsDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// ExistsByIdempotencyKey reports whether an alert with the key is stored
func (s *AlertStore) ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Alert{}).Where("idempotency_key = ?", key).Limit(1).Count(&count).Error
	return count > 0, err
}

// Get returns an alert by surrogate id; gorm.ErrRecordNotFound when absent
func (s *AlertStore) Get(ctx context.Context, id uint) (*Alert, error) {
	var alert Alert
	if err := s.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// List returns one page of alerts matching the filter, newest first
func (s *AlertStore) List(ctx context.Context, filter AlertFilter, offset, limit int) ([]Alert, error) {
	alerts := []Alert{}
	err := s.db.WithContext(ctx).
		Scopes(filter.Scope()).
		Clauses(newestFirst).
		Offset(offset).
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// Count returns the number of alerts matching the filter
func (s *AlertStore) Count(ctx context.Context, filter AlertFilter) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&Alert{}).Scopes(filter.Scope()).Count(&total).Error
	return total, err
}

// Delete removes one alert. It reports false when no row had that id.
func (s *AlertStore) Delete(ctx context.Context, id uint) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&Alert{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteReceivedBefore removes every alert received strictly before cutoff
func (s *AlertStore) DeleteReceivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("received_at < ?", cutoff.UTC()).Delete(&Alert{})
	return result.RowsAffected, result.Error
}

type severityCount struct {
	Severity *string
	Count    int64
}

// Metrics computes total, per-severity and last-24h counts as of now
func (s *AlertStore) Metrics(ctx context.Context, now time.Time) (*AlertMetrics, error) {
	db := s.db.WithContext(ctx)
	m := &AlertMetrics{SeverityCounts: map[string]int64{}}

	if err := db.Model(&Alert{}).Count(&m.TotalAlerts).Error; err != nil {
		return nil, err
	}

	var rows []severityCount
	err := db.Model(&Alert{}).
		Select("severity, COUNT(*) AS count").
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		key := UnsetSeverity
		if row.Severity != nil && *row.Severity != "" {
			key = *row.Severity
		}
		m.SeverityCounts[key] += row.Count
	}

	since := now.UTC().Add(-24 * time.Hour)
	if err := db.Model(&Alert{}).Where("received_at >= ?", since).Count(&m.Last24hCount).Error; err != nil {
		return nil, err
	}

	return m, nil
}

// IsDuplicateKey reports whether err is a unique constraint violation from any supported driver
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicateKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
