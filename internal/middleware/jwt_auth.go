package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ucgmax/webhook-receiver/internal/api"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenIssuer is the iss claim of issued tokens
const DefaultTokenIssuer = "ucg-max-webhook-receiver"

// UserClaims represents the JWT claims for the admin session.
// The username is carried in the standard sub claim.
type UserClaims struct {
	jwt.RegisteredClaims
}

// JWTAuthConfig holds JWT authentication configuration
type JWTAuthConfig struct {
	// AdminUsername is the single admin account name
	AdminUsername string

	// AdminPasswordHash is the bcrypt hash of the admin password
	AdminPasswordHash string

	// JWTSecret is the HS256 signing key
	JWTSecret string

	// Expiry is the token lifetime
	Expiry time.Duration

	// Issuer is the iss claim; DefaultTokenIssuer when empty
	Issuer string
}

// JWTAuthMiddleware issues and validates admin session tokens
type JWTAuthMiddleware struct {
	config *JWTAuthConfig
	logger *zap.Logger
	now    func() time.Time
}

// ContextKey is a type for context keys
type ContextKey string

const (
	// UserContextKey is the context key for the authenticated user
	UserContextKey ContextKey = "user"
)

// NewJWTAuthMiddleware creates a new JWT authentication middleware
func NewJWTAuthMiddleware(config *JWTAuthConfig, logger *zap.Logger) *JWTAuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Issuer == "" {
		config.Issuer = DefaultTokenIssuer
	}
	if config.Expiry <= 0 {
		config.Expiry = 15 * time.Minute
	}
	return &JWTAuthMiddleware{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if the provided password matches the hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Expiry returns the lifetime of issued tokens
func (m *JWTAuthMiddleware) Expiry() time.Duration {
	return m.config.Expiry
}

// GenerateToken generates a signed token with sub=username
func (m *JWTAuthMiddleware) GenerateToken(username string) (string, error) {
	now := m.now()
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.JWTSecret))
}

// ValidateToken validates a token and returns the claims.
// Only HS256 is accepted; expired, tampered or foreign-issuer tokens fail.
func (m *JWTAuthMiddleware) ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(m.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// ValidateCredentials validates username and password against the admin account
func (m *JWTAuthMiddleware) ValidateCredentials(username, password string) bool {
	// Use constant-time comparison for username
	if subtle.ConstantTimeCompare([]byte(username), []byte(m.config.AdminUsername)) != 1 {
		return false
	}

	return CheckPassword(password, m.config.AdminPasswordHash)
}

// Wrap wraps an http.Handler with JWT authentication
func (m *JWTAuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r.Header)
		if !ok || tokenString == "" {
			m.unauthorized(w, "missing authentication token")
			return
		}

		claims, err := m.ValidateToken(tokenString)
		if err != nil {
			reason := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				reason = "token expired"
			}
			m.logger.Info("rejected session token",
				zap.String("remote_addr", r.RemoteAddr),
				RequestIDField(r.Context()),
				zap.Error(err))
			m.unauthorized(w, reason)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// unauthorized sends an unauthorized response
func (m *JWTAuthMiddleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer realm=\"API\"")
	api.RespondErrorWithCode(w, http.StatusUnauthorized, api.CodeUnauthorized, message)
}

// GetUserFromContext returns the username from the request context
func GetUserFromContext(ctx context.Context) string {
	if user, ok := ctx.Value(UserContextKey).(string); ok {
		return user
	}
	return ""
}
