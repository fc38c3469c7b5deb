// Package testhelpers provides reusable testing utilities for the webhook receiver.
//
// This package contains:
// - HTTP test helpers (requests, signed webhook bodies)
// - In-memory alert stores
// - Alert builders and a recording notifier
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/middleware"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
	body     []byte
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		if raw, err = io.ReadAll(body); err != nil {
			t.Fatalf("failed to read request body: %v", err)
		}
	}
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  httptest.NewRequest(method, path, bytes.NewReader(raw)),
		body:     raw,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	return ctx.WithRawBody(body)
}

// WithRawBody replaces the request body with exact bytes
func (ctx *HTTPTestContext) WithRawBody(body []byte) *HTTPTestContext {
	header := ctx.Request.Header.Clone()
	remote := ctx.Request.RemoteAddr
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	ctx.Request.Header = header
	ctx.Request.RemoteAddr = remote
	ctx.Request.Header.Set("Content-Type", "application/json")
	ctx.body = body
	return ctx
}

// WithSignature signs the current body with secret into X-Hub-Signature-256
func (ctx *HTTPTestContext) WithSignature(secret string) *HTTPTestContext {
	return ctx.WithHeader(middleware.SignatureHeader256, "sha256="+middleware.Sign([]byte(secret), ctx.body))
}

// WithBearerToken adds Authorization Bearer header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// WithIdempotencyKey adds the Idempotency-Key header
func (ctx *HTTPTestContext) WithIdempotencyKey(key string) *HTTPTestContext {
	return ctx.WithHeader("Idempotency-Key", key)
}

// WithRemoteAddr sets the client address seen by the server
func (ctx *HTTPTestContext) WithRemoteAddr(addr string) *HTTPTestContext {
	ctx.Request.RemoteAddr = addr
	return ctx
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if !bytes.Contains([]byte(body), []byte(substr)) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// AssertHeader checks response header value
func (ctx *HTTPTestContext) AssertHeader(key, expected string) *HTTPTestContext {
	ctx.T.Helper()
	got := ctx.Recorder.Header().Get(key)
	if got != expected {
		ctx.T.Errorf("expected header %s=%q, got %q", key, expected, got)
	}
	return ctx
}

// AssertErrorCode checks the machine-readable code of an error response
func (ctx *HTTPTestContext) AssertErrorCode(expected string) *HTTPTestContext {
	ctx.T.Helper()
	AssertJSONKeyValue(ctx.T, ctx.Recorder.Body.String(), "code", expected, "error code")
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(bytes.NewReader(ctx.Recorder.Body.Bytes())).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Database Helpers
// ========================================

// NewTestDB opens a migrated in-memory SQLite database closed at test end
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, "sqlite://:memory:")
}

// NewFileTestDB opens a migrated SQLite database file in t.TempDir.
// Use it when a test needs the database to outlive one connection.
func NewFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openTestDB(t, "sqlite://"+filepath.Join(t.TempDir(), "alerts.db")+"?_busy_timeout=5000")
}

func openTestDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	db, err := database.Open(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(db, nil); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// NewTestStore returns an AlertStore over NewTestDB
func NewTestStore(t *testing.T) *database.AlertStore {
	t.Helper()
	return database.NewAlertStore(NewTestDB(t))
}

// SeedAlerts inserts alerts in order and returns them with ids assigned
func SeedAlerts(t *testing.T, db *gorm.DB, alerts ...database.Alert) []database.Alert {
	t.Helper()
	for i := range alerts {
		if err := db.Create(&alerts[i]).Error; err != nil {
			t.Fatalf("failed to seed alert %d: %v", i, err)
		}
	}
	return alerts
}

// ========================================
// Alert Builder
// ========================================

// AlertBuilder builds database.Alert instances for testing
type AlertBuilder struct {
	alert database.Alert
}

// NewAlertBuilder creates a new alert builder with defaults
func NewAlertBuilder() *AlertBuilder {
	now := time.Now().UTC()
	return &AlertBuilder{
		alert: database.Alert{
			AlertID:       "test-alert",
			WebhookSource: database.DefaultWebhookSource,
			Source:        "UCG Max",
			Device:        "gateway-01",
			Severity:      "warning",
			AlertType:     "test",
			Timestamp:     &now,
			Summary:       "Test alert",
			ReceivedAt:    now,
			CreatedAt:     now,
		},
	}
}

// WithAlertID sets the sender alert id
func (b *AlertBuilder) WithAlertID(id string) *AlertBuilder {
	b.alert.AlertID = id
	return b
}

// WithSeverity sets the severity; "" leaves it unset
func (b *AlertBuilder) WithSeverity(severity string) *AlertBuilder {
	b.alert.Severity = severity
	return b
}

// WithType sets the alert type
func (b *AlertBuilder) WithType(alertType string) *AlertBuilder {
	b.alert.AlertType = alertType
	return b
}

// WithDevice sets the device
func (b *AlertBuilder) WithDevice(device string) *AlertBuilder {
	b.alert.Device = device
	return b
}

// WithWebhookSource sets the webhook path tag
func (b *AlertBuilder) WithWebhookSource(source string) *AlertBuilder {
	b.alert.WebhookSource = source
	return b
}

// WithSummary sets the summary
func (b *AlertBuilder) WithSummary(summary string) *AlertBuilder {
	b.alert.Summary = summary
	return b
}

// WithDetails sets the details document
func (b *AlertBuilder) WithDetails(details database.JSONB) *AlertBuilder {
	b.alert.Details = details
	return b
}

// WithTimestamp sets the event time
func (b *AlertBuilder) WithTimestamp(ts time.Time) *AlertBuilder {
	ts = ts.UTC()
	b.alert.Timestamp = &ts
	return b
}

// ReceivedAt sets received_at and created_at
func (b *AlertBuilder) ReceivedAt(ts time.Time) *AlertBuilder {
	b.alert.ReceivedAt = ts.UTC()
	b.alert.CreatedAt = ts.UTC()
	return b
}

// WithIdempotencyKey sets the idempotency key
func (b *AlertBuilder) WithIdempotencyKey(key string) *AlertBuilder {
	b.alert.IdempotencyKey = &key
	return b
}

// Build returns the constructed alert
func (b *AlertBuilder) Build() database.Alert {
	return b.alert
}

// ========================================
// Recording Notifier
// ========================================

// RecordingNotifier collects notified alerts
type RecordingNotifier struct {
	mu     sync.Mutex
	alerts []database.Alert
}

// Notify records a copy of alert
func (n *RecordingNotifier) Notify(alert *database.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, *alert)
}

// Alerts returns the notified alerts in order
func (n *RecordingNotifier) Alerts() []database.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]database.Alert(nil), n.alerts...)
}

// ========================================
// Timing Helpers
// ========================================

// MustCompleteWithin fails the test if the function takes longer than the timeout
func MustCompleteWithin(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		t.Fatalf("function did not complete within %v", timeout)
	}
}
