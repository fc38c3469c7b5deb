// Package metrics defines the Prometheus metrics of the webhook receiver.
//
// Metric naming follows Prometheus conventions:
//   - ucgmax_ prefix for all custom metrics
//   - _total suffix for counters
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes used as the "outcome" label of WebhooksTotal.
const (
	OutcomeAccepted       = "accepted"
	OutcomeUnauthorized   = "unauthorized"
	OutcomeInvalidPayload = "invalid_payload"
	OutcomeDuplicate      = "duplicate"
	OutcomeError          = "error"
)

var (
	// WebhooksTotal counts webhook submissions by source and outcome.
	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucgmax_webhooks_total",
			Help: "Total webhook submissions by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ucgmax_rate_limited_total",
			Help: "Total requests rejected with 429.",
		},
	)

	// RetentionDeletedTotal counts alerts removed by the retention sweep.
	RetentionDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ucgmax_retention_deleted_total",
			Help: "Total alerts deleted by the retention sweep.",
		},
	)

	// RetentionRunsTotal counts retention sweeps by result (ok, error).
	RetentionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucgmax_retention_runs_total",
			Help: "Total retention sweeps by result.",
		},
		[]string{"result"},
	)

	// NotificationsTotal counts chat notifications by result (sent, failed, dropped).
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucgmax_notifications_total",
			Help: "Total alert notifications by result.",
		},
		[]string{"result"},
	)
)

// Collectors returns every metric owned by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		WebhooksTotal,
		RateLimitedTotal,
		RetentionDeletedTotal,
		RetentionRunsTotal,
		NotificationsTotal,
	}
}

// NewRegistry returns a registry holding the receiver metrics plus the Go and process collectors.
func NewRegistry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds the receiver metrics to reg. Metrics already present are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler serves the Prometheus exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordWebhook records one webhook submission.
func RecordWebhook(source, outcome string) {
	WebhooksTotal.WithLabelValues(source, outcome).Inc()
}

// RecordRateLimited records one rejected request.
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}

// RecordRetention records one retention sweep.
func RecordRetention(deleted int64, err error) {
	if err != nil {
		RetentionRunsTotal.WithLabelValues("error").Inc()
		return
	}
	RetentionRunsTotal.WithLabelValues("ok").Inc()
	RetentionDeletedTotal.Add(float64(deleted))
}

// RecordNotification records one notification attempt.
func RecordNotification(result string) {
	NotificationsTotal.WithLabelValues(result).Inc()
}
