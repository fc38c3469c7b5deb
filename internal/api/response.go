package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Machine-readable error codes carried in ErrorResponse.Code.
const (
	CodeUnauthorized     = "unauthorized"
	CodeInvalidPayload   = "invalid_payload"
	CodeInvalidQuery     = "invalid_query"
	CodeDuplicate        = "duplicate"
	CodeNotFound         = "not_found"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
	CodeUnavailable      = "unavailable"
	CodeMethodNotAllowed = "method_not_allowed"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Warn("failed to encode JSON response", zap.Error(err))
		}
	}
}

// RespondErrorWithCode writes an error response with a machine-readable code.
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondValidationError writes field-level validation errors as a 400 invalid_payload response.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "invalid payload: " + Summary(fieldErrors),
		Code:    CodeInvalidPayload,
		Details: fieldErrors,
	})
}

