package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordWebhook(t *testing.T) {
	before := testutil.ToFloat64(WebhooksTotal.WithLabelValues("generic", OutcomeAccepted))
	RecordWebhook("generic", OutcomeAccepted)
	RecordWebhook("generic", OutcomeAccepted)

	got := testutil.ToFloat64(WebhooksTotal.WithLabelValues("generic", OutcomeAccepted))
	if got-before != 2 {
		t.Errorf("webhooks_total delta = %v, want 2", got-before)
	}
}

func TestRecordRetention(t *testing.T) {
	deletedBefore := testutil.ToFloat64(RetentionDeletedTotal)
	okBefore := testutil.ToFloat64(RetentionRunsTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(RetentionRunsTotal.WithLabelValues("error"))

	RecordRetention(7, nil)
	RecordRetention(3, errors.New("db down"))

	if d := testutil.ToFloat64(RetentionDeletedTotal) - deletedBefore; d != 7 {
		t.Errorf("retention_deleted_total delta = %v, want 7", d)
	}
	if d := testutil.ToFloat64(RetentionRunsTotal.WithLabelValues("ok")) - okBefore; d != 1 {
		t.Errorf("ok runs delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(RetentionRunsTotal.WithLabelValues("error")) - errBefore; d != 1 {
		t.Errorf("error runs delta = %v, want 1", d)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register() error = %v", err)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	RecordRateLimited()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{"ucgmax_rate_limited_total", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("exposition is missing %s", name)
		}
	}
}
