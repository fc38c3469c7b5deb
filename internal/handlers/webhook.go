package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ucgmax/webhook-receiver/internal/api"
	"github.com/ucgmax/webhook-receiver/internal/logging"
	"github.com/ucgmax/webhook-receiver/internal/middleware"
	"github.com/ucgmax/webhook-receiver/internal/services"
	"github.com/ucgmax/webhook-receiver/internal/utils"
	"go.uber.org/zap"
)

// WebhookHandler receives alert webhooks at /webhook/{source}
type WebhookHandler struct {
	alerts      *services.AlertService
	rateLimiter *middleware.RateLimiter
	logger      *zap.Logger
}

// NewWebhookHandler creates a new webhook handler. rateLimiter may be nil.
func NewWebhookHandler(alerts *services.AlertService, rateLimiter *middleware.RateLimiter, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{alerts: alerts, rateLimiter: rateLimiter, logger: logging.OrNop(logger)}
}

// SetupRoutes registers the webhook route behind the rate limiter
func (h *WebhookHandler) SetupRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.rateLimiter != nil {
			r.Use(h.rateLimiter.Wrap)
		}
		r.Post("/webhook/{source}", h.handleWebhook)
	})
}

func (h *WebhookHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	// Signatures cover the exact bytes received, so the body is read once and kept raw.
	body, err := api.ReadBody(r)
	if err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidPayload, err.Error())
		return
	}

	result, err := h.alerts.Ingest(r.Context(), source, body, r.Header)
	if err != nil {
		h.logger.Info("webhook rejected",
			zap.String("webhook_source", utils.EscapeForLogging(source, maxLoggedField)),
			zap.String("client_ip", middleware.ClientIP(r)),
			middleware.RequestIDField(r.Context()),
			zap.Error(err))
		respondServiceError(w, r, h.logger, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.WebhookResponse{Status: result.Status, AlertID: result.AlertID})
}
