package handlers

import (
	"net/http"
	"testing"

	"github.com/ucgmax/webhook-receiver/internal/api"
	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/metrics"
	"github.com/ucgmax/webhook-receiver/internal/testhelpers"
)

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	var resp api.HealthResponse
	s.request(t, http.MethodGet, "/health").
		Execute(s.handler).
		AssertStatus(http.StatusOK).
		AssertHeader("Content-Type", "application/json").
		DecodeJSON(&resp)

	if resp.Status != "healthy" || resp.Service != ServiceName {
		t.Errorf("health = %+v", resp)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			s.request(t, method, "/health").
				Execute(s.handler).
				AssertStatus(http.StatusMethodNotAllowed).
				AssertErrorCode(api.CodeMethodNotAllowed)
		})
	}
}

func TestReady(t *testing.T) {
	s := newTestServer(t)

	s.request(t, http.MethodGet, "/ready").
		Execute(s.handler).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"database":"connected"`)
}

func TestReady_DatabaseClosed(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	s := newTestServerWithDB(t, db)
	if err := database.Close(db); err != nil {
		t.Fatal(err)
	}

	s.request(t, http.MethodGet, "/ready").
		Execute(s.handler).
		AssertStatus(http.StatusServiceUnavailable).
		AssertErrorCode(api.CodeUnavailable)
}

func TestNotFoundIsJSON(t *testing.T) {
	s := newTestServer(t)

	s.request(t, http.MethodGet, "/nope").
		Execute(s.handler).
		AssertStatus(http.StatusNotFound).
		AssertErrorCode(api.CodeNotFound)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	s.request(t, http.MethodGet, "/health").
		WithHeader("X-Request-ID", "req-123").
		Execute(s.handler).
		AssertHeader("X-Request-ID", "req-123")
}

func TestPrometheusEndpoint(t *testing.T) {
	reg, err := metrics.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, func(cfg *RouterConfig) { cfg.Gatherer = reg })

	s.request(t, http.MethodPost, "/webhook/ucgmax").
		WithJSONBody(map[string]string{"severity": "info"}).
		WithBearerToken(testBearer).
		Execute(s.handler).
		AssertStatus(http.StatusOK)

	s.request(t, http.MethodGet, "/metrics").
		Execute(s.handler).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`ucgmax_webhooks_total{outcome="accepted",source="ucgmax"}`)
}

func TestPrometheusEndpoint_DisabledWithoutGatherer(t *testing.T) {
	s := newTestServer(t)

	s.request(t, http.MethodGet, "/metrics").
		Execute(s.handler).
		AssertStatus(http.StatusNotFound)
}
