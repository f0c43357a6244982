package service

import "fmt"

// Error codes surfaced in JSON responses.
const (
	CodeValidation         = "validation_error"
	CodeConflict           = "conflict"
	CodeInvalidCredentials = "invalid_credentials"
	CodeMissingToken       = "missing_token"
	CodeInvalidToken       = "invalid_token"
	CodeNotFound           = "not_found"
	CodeUpstream           = "upstream_error"
	CodeUnavailable        = "service_unavailable"
)

// APIError is a caller-facing failure with a stable code and an HTTP status.
// Handlers translate it to `{"error": code, "message": message}`.
type APIError struct {
	Code    string
	Message string
	Status  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAPIError(code, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, Status: status}
}
