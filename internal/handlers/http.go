package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ucgmax/webhook-receiver/internal/api"
	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServiceName is reported by /health
const ServiceName = "ucg-max-webhook-receiver"

const readyTimeout = 3 * time.Second

// HTTPHandler handles liveness and readiness probes
type HTTPHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(db *gorm.DB, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{db: db, logger: logging.OrNop(logger)}
}

// SetupRoutes configures the probe routes
func (h *HTTPHandler) SetupRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
}

// handleHealth has no dependencies; it only proves the process is serving
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, api.HealthResponse{Status: "healthy", Service: ServiceName})
}

func (h *HTTPHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := database.Ping(ctx, h.db); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		api.RespondErrorWithCode(w, http.StatusServiceUnavailable, api.CodeUnavailable, "database unavailable")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.ReadyResponse{Status: "ready", Database: "connected"})
}
