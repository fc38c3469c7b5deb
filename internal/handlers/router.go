// Package handlers wires the HTTP routes of the webhook receiver.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ucgmax/webhook-receiver/internal/api"
	"github.com/ucgmax/webhook-receiver/internal/logging"
	"github.com/ucgmax/webhook-receiver/internal/metrics"
	"github.com/ucgmax/webhook-receiver/internal/middleware"
	"github.com/ucgmax/webhook-receiver/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RouterConfig collects everything NewRouter needs
type RouterConfig struct {
	DB             *gorm.DB
	Alerts         *services.AlertService
	JWTAuth        *middleware.JWTAuthMiddleware
	RateLimiter    *middleware.RateLimiter    // optional
	TrustedProxies *middleware.TrustedProxies // optional; forwarding headers are ignored without it
	Gatherer       prometheus.Gatherer        // optional; /metrics is not served without it
	CORSOrigins    []string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewRouter builds the full HTTP handler
func NewRouter(cfg RouterConfig) http.Handler {
	logger := logging.OrNop(cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(cfg.TrustedProxies.RealIP)
	r.Use(accessLog(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewCORSMiddleware(cfg.CORSOrigins...).Wrap)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.RespondErrorWithCode(w, http.StatusMethodNotAllowed, api.CodeMethodNotAllowed, "method not allowed")
	})

	NewHTTPHandler(cfg.DB, logger).SetupRoutes(r)
	NewAuthHandler(cfg.JWTAuth, logger).SetupRoutes(r)
	NewWebhookHandler(cfg.Alerts, cfg.RateLimiter, logger).SetupRoutes(r)
	NewAlertHandler(cfg.Alerts, cfg.JWTAuth, logger).SetupRoutes(r)

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	return r
}

// accessLog writes one debug line per request
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("client_ip", middleware.ClientIP(r)),
				middleware.RequestIDField(r.Context()))
		})
	}
}
