package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ucgmax/webhook-receiver/internal/api"
	"github.com/ucgmax/webhook-receiver/internal/logging"
	"github.com/ucgmax/webhook-receiver/internal/middleware"
	"github.com/ucgmax/webhook-receiver/internal/utils"
	"go.uber.org/zap"
)

// maxLoggedField bounds client-supplied values written to logs
const maxLoggedField = 64

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	jwtAuth *middleware.JWTAuthMiddleware
	logger  *zap.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(jwtAuth *middleware.JWTAuthMiddleware, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{jwtAuth: jwtAuth, logger: logging.OrNop(logger)}
}

// SetupRoutes sets up authentication routes
func (h *AuthHandler) SetupRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

// handleLogin handles POST /auth/login
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, api.CodeInvalidPayload, "invalid request body")
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	if !h.jwtAuth.ValidateCredentials(req.Username, req.Password) {
		h.logger.Warn("failed login attempt",
			zap.String("username", utils.EscapeForLogging(req.Username, maxLoggedField)),
			zap.String("client_ip", middleware.ClientIP(r)),
			middleware.RequestIDField(r.Context()))
		w.Header().Set("WWW-Authenticate", "Bearer")
		api.RespondErrorWithCode(w, http.StatusUnauthorized, api.CodeUnauthorized, "invalid username or password")
		return
	}

	token, err := h.jwtAuth.GenerateToken(req.Username)
	if err != nil {
		h.logger.Error("failed to generate token", zap.String("username", utils.EscapeForLogging(req.Username, maxLoggedField)), zap.Error(err))
		api.RespondErrorWithCode(w, http.StatusInternalServerError, api.CodeInternal, "failed to generate token")
		return
	}

	h.logger.Info("user logged in", zap.String("username", utils.EscapeForLogging(req.Username, maxLoggedField)), zap.String("client_ip", middleware.ClientIP(r)))

	api.RespondJSON(w, http.StatusOK, api.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.jwtAuth.Expiry().Seconds()),
	})
}
