// Package apierror holds the error envelopes returned to HTTP clients.
// Internal details (SQL, driver messages, stack traces) never reach them.
package apierror

// APIError is the envelope for every 4xx/5xx response. Code is a stable
// machine-readable identifier; Detail is for humans.
type APIError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func New(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// ValidationError carries one entry per rejected request field.
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: "validation_failed", Detail: "request validation failed", Fields: fields}
}
