package services

import (
	"errors"

	"github.com/ucgmax/webhook-receiver/internal/api"
)

// Sentinel errors returned by AlertService. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrDuplicate      = errors.New("duplicate idempotency key")
	ErrNotFound       = errors.New("alert not found")
	ErrUnknownSource  = errors.New("unknown webhook source")
	ErrInvalidQuery   = errors.New("invalid query")
)

// ValidationError carries field-level payload errors. It matches ErrInvalidPayload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + api.Summary(e.Fields)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidPayload
}
