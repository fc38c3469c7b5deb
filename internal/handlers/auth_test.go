package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucgmax/webhook-receiver/internal/api"
)

func TestLogin_Success(t *testing.T) {
	s := newTestServer(t)

	var resp api.TokenResponse
	s.request(t, http.MethodPost, "/auth/login").
		WithJSONBody(api.LoginRequest{Username: testAdmin, Password: testPassword}).
		Execute(s.handler).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 15*60, resp.ExpiresIn)
	require.NotEmpty(t, resp.AccessToken)

	claims, err := s.jwtAuth.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, claims.Subject)
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized, api.CodeUnauthorized},
		{"wrong user", `{"username":"root","password":"correct horse"}`, http.StatusUnauthorized, api.CodeUnauthorized},
		{"missing password", `{"username":"admin"}`, http.StatusBadRequest, api.CodeInvalidPayload},
		{"not json", `not json`, http.StatusBadRequest, api.CodeInvalidPayload},
		{"unknown field", `{"username":"admin","password":"x","role":"root"}`, http.StatusBadRequest, api.CodeInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.request(t, http.MethodPost, "/auth/login").
				WithRawBody([]byte(tt.body)).
				Execute(s.handler).
				AssertStatus(tt.wantStatus).
				AssertErrorCode(tt.wantCode)
		})
	}
}

func TestLogin_TokenAuthorizesDelete(t *testing.T) {
	s := newTestServer(t)
	seeded := seedFive(t, s)

	var resp api.TokenResponse
	s.request(t, http.MethodPost, "/auth/login").
		WithJSONBody(api.LoginRequest{Username: testAdmin, Password: testPassword}).
		Execute(s.handler).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	s.request(t, http.MethodDelete, "/api/alerts/"+itoa(seeded[1].ID)).
		WithBearerToken(resp.AccessToken).
		Execute(s.handler).
		AssertStatus(http.StatusOK)
}
