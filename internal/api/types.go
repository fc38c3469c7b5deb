package api

// WebhookResponse is returned by POST /webhook/{source} on success.
type WebhookResponse struct {
	Status  string `json:"status"`
	AlertID string `json:"alert_id"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// DeleteResponse is returned by DELETE /api/alerts/{id}.
type DeleteResponse struct {
	Status string `json:"status"`
	ID     uint   `json:"id"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
