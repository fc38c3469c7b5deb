package handlers

import (
	"errors"
	"net/http"

	"github.com/ucgmax/webhook-receiver/internal/api"
	"github.com/ucgmax/webhook-receiver/internal/middleware"
	"github.com/ucgmax/webhook-receiver/internal/services"
	"go.uber.org/zap"
)

// respondServiceError maps service errors to status codes. Unknown errors are
// logged in full and reported as a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		api.RespondValidationError(w, verr.Fields)
	case errors.Is(err, services.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		api.RespondErrorWithCode(w, http.StatusUnauthorized, api.CodeUnauthorized, "invalid or missing credentials")
	case errors.Is(err, services.ErrInvalidPayload):
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidPayload, err.Error())
	case errors.Is(err, services.ErrInvalidQuery):
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidQuery, err.Error())
	case errors.Is(err, services.ErrDuplicate):
		api.RespondErrorWithCode(w, http.StatusConflict, api.CodeDuplicate, "duplicate idempotency key")
	case errors.Is(err, services.ErrUnknownSource):
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeNotFound, "unknown webhook source")
	case errors.Is(err, services.ErrNotFound):
		api.RespondErrorWithCode(w, http.StatusNotFound, api.CodeNotFound, "alert not found")
	default:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			middleware.RequestIDField(r.Context()),
			zap.Error(err))
		api.RespondErrorWithCode(w, http.StatusInternalServerError, api.CodeInternal, "internal server error")
	}
}
