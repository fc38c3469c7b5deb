package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// Signature headers checked by HMACVerifier, in order of preference.
const (
	SignatureHeader256 = "X-Hub-Signature-256"
	SignatureHeader    = "X-Hub-Signature"
)

// WebhookVerifier decides whether an inbound webhook is authentic.
// Implementations must not panic on malformed input; they report false instead.
type WebhookVerifier interface {
	Verify(body []byte, headers http.Header) bool
}

// BearerTokenVerifier accepts requests carrying "Authorization: Bearer <Token>".
// An empty Token never matches.
type BearerTokenVerifier struct {
	Token string
}

// Verify implements WebhookVerifier
func (v BearerTokenVerifier) Verify(_ []byte, headers http.Header) bool {
	if v.Token == "" {
		return false
	}
	token, ok := bearerToken(headers)
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(v.Token)) == 1
}

// HMACVerifier accepts requests whose signature header holds the hex HMAC-SHA256
// of the exact body bytes, optionally prefixed with "sha256=". An empty Secret never matches.
type HMACVerifier struct {
	Secret []byte
}

// Verify implements WebhookVerifier
func (v HMACVerifier) Verify(body []byte, headers http.Header) bool {
	if len(v.Secret) == 0 {
		return false
	}

	provided := headers.Get(SignatureHeader256)
	if provided == "" {
		provided = headers.Get(SignatureHeader)
	}
	provided = strings.TrimPrefix(strings.TrimSpace(provided), "sha256=")
	if provided == "" {
		return false
	}

	expected := Sign(v.Secret, body)
	return hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected))
}

// AnyVerifier accepts a request when any of its verifiers does.
type AnyVerifier []WebhookVerifier

// Verify implements WebhookVerifier
func (a AnyVerifier) Verify(body []byte, headers http.Header) bool {
	for _, v := range a {
		if v != nil && v.Verify(body, headers) {
			return true
		}
	}
	return false
}

// NewWebhookVerifier composes the bearer token check and the HMAC check.
// Either credential may be empty, which disables that check.
func NewWebhookVerifier(bearer, hmacSecret string) WebhookVerifier {
	var verifiers AnyVerifier
	if bearer != "" {
		verifiers = append(verifiers, BearerTokenVerifier{Token: bearer})
	}
	if hmacSecret != "" {
		verifiers = append(verifiers, HMACVerifier{Secret: []byte(hmacSecret)})
	}
	return verifiers
}

// Sign returns the lowercase hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(headers http.Header) (string, bool) {
	authHeader := headers.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), true
}
