package handlers

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/middleware"
	"github.com/ucgmax/webhook-receiver/internal/services"
	"github.com/ucgmax/webhook-receiver/internal/testhelpers"
	"gorm.io/gorm"
)

const (
	testHMACSecret = "webhook-secret"
	testBearer     = "webhook-token"
	testAdmin      = "admin"
	testPassword   = "correct horse"
	testJWTSecret  = "jwt-signing-secret"
)

// testServer is a fully wired router over an in-memory SQLite database
type testServer struct {
	handler  http.Handler
	db       *gorm.DB
	jwtAuth  *middleware.JWTAuthMiddleware
	notifier *testhelpers.RecordingNotifier
}

type serverOption func(*RouterConfig)

func withRateLimit(limit int) serverOption {
	return func(cfg *RouterConfig) {
		store := middleware.NewMemoryWindowStore(0)
		cfg.RateLimiter = middleware.NewRateLimiter(store, limit, time.Minute, nil)
	}
}

func withTrustedProxies(t *testing.T, proxies ...string) serverOption {
	t.Helper()
	tp, err := middleware.ParseTrustedProxies(proxies)
	if err != nil {
		t.Fatalf("ParseTrustedProxies() error = %v", err)
	}
	return func(cfg *RouterConfig) {
		cfg.TrustedProxies = tp
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	return newTestServerWithDB(t, db, opts...)
}

func newTestServerWithDB(t *testing.T, db *gorm.DB, opts ...serverOption) *testServer {
	t.Helper()

	hash, err := middleware.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		AdminUsername:     testAdmin,
		AdminPasswordHash: hash,
		JWTSecret:         testJWTSecret,
	}, nil)

	verifier := middleware.NewWebhookVerifier(testBearer, testHMACSecret)
	alerts := services.NewAlertService(database.NewAlertStore(db), verifier, []string{"ucgmax", "generic"}, nil)
	notifier := &testhelpers.RecordingNotifier{}
	alerts.SetNotifier(notifier)

	cfg := RouterConfig{
		DB:             db,
		Alerts:         alerts,
		JWTAuth:        jwtAuth,
		RequestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testServer{handler: NewRouter(cfg), db: db, jwtAuth: jwtAuth, notifier: notifier}
}

func (s *testServer) request(t *testing.T, method, path string) *testhelpers.HTTPTestContext {
	t.Helper()
	return testhelpers.NewHTTPTestContext(t, method, path, nil)
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	token, err := s.jwtAuth.GenerateToken(testAdmin)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

func (s *testServer) countAlerts(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := s.db.Model(&database.Alert{}).Count(&n).Error; err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	return n
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
