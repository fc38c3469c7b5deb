package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ucgmax/webhook-receiver/internal/api"
	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/export"
	"github.com/ucgmax/webhook-receiver/internal/logging"
	"github.com/ucgmax/webhook-receiver/internal/middleware"
	"github.com/ucgmax/webhook-receiver/internal/services"
	"go.uber.org/zap"
)

// AlertHandler serves the alert query, export, delete and metrics endpoints
type AlertHandler struct {
	alerts  *services.AlertService
	jwtAuth *middleware.JWTAuthMiddleware
	logger  *zap.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts *services.AlertService, jwtAuth *middleware.JWTAuthMiddleware, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, jwtAuth: jwtAuth, logger: logging.OrNop(logger)}
}

// SetupRoutes registers /api/alerts and /api/metrics
func (h *AlertHandler) SetupRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/alerts", h.handleList)
		r.Get("/alerts/export", h.handleExport)
		r.Get("/alerts/{id}", h.handleGet)
		r.With(h.jwtAuth.Wrap).Delete("/alerts/{id}", h.handleDelete)
		r.Get("/metrics", h.handleMetrics)
	})
}

// GET /api/alerts
func (h *AlertHandler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	page, err := api.ParsePagination(r)
	if err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidQuery, err.Error())
		return
	}

	alerts, total, err := h.alerts.List(r.Context(), filter, page.Offset(), page.PageSize)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	w.Header().Set("X-Total-Pages", strconv.Itoa(page.TotalPages(total)))
	api.RespondJSON(w, http.StatusOK, alerts)
}

// GET /api/alerts/export?format=csv|xlsx
func (h *AlertHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidQuery, err.Error())
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	alerts, err := h.alerts.Export(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	// Rendered up front so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, alerts); err != nil {
		respondServiceError(w, r, h.logger, fmt.Errorf("failed to render export: %w", err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to write export", middleware.RequestIDField(r.Context()), zap.Error(err))
	}
}

// GET /api/alerts/{id}
func (h *AlertHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	alert, err := h.alerts.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// DELETE /api/alerts/{id}
func (h *AlertHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	user := middleware.GetUserFromContext(r.Context())
	if err := h.alerts.Delete(r.Context(), id, user); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.DeleteResponse{Status: "deleted", ID: id})
}

// GET /api/metrics
func (h *AlertHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.alerts.Metrics(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, m)
}

// parseID reads the {id} path parameter. Anything but a positive integer is a 404,
// matching a lookup that finds nothing.
func parseID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 0)
	if err != nil || id == 0 {
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeNotFound, "alert not found")
		return 0, false
	}
	return uint(id), true
}

// parseFilter builds the store filter from query parameters
func parseFilter(r *http.Request) (database.AlertFilter, error) {
	q := r.URL.Query()
	filter := database.AlertFilter{
		Severity:      strings.TrimSpace(q.Get("severity")),
		AlertType:     strings.TrimSpace(q.Get("alert_type")),
		Device:        strings.TrimSpace(q.Get("device")),
		WebhookSource: strings.TrimSpace(q.Get("webhook_source")),
		Query:         q.Get("q"),
	}

	var err error
	if filter.Start, err = api.QueryTime(r, "start"); err != nil {
		return filter, fmt.Errorf("%w: %v", services.ErrInvalidQuery, err)
	}
	if filter.End, err = api.QueryTime(r, "end"); err != nil {
		return filter, fmt.Errorf("%w: %v", services.ErrInvalidQuery, err)
	}
	return filter, services.ValidateFilter(filter)
}
