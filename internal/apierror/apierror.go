// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"net/http"

	"stockledger/internal/apperr"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Validation failed", Fields: fields}
}

// Generic texts for kinds that must not reveal why they failed.
const (
	MsgUnauthorized = "Authentication required"
	MsgForbidden    = "Not permitted"
	MsgUnavailable  = "Service temporarily unavailable, retry later"
	MsgInternal     = "Internal server error"
)

// FromError maps a classified error to a status and envelope. Only NotFound,
// Conflict and InvalidArgument carry their reason to the client.
func FromError(err error) (int, *APIError) {
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError, New(MsgInternal)
	}
	switch e.Kind {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized, New(MsgUnauthorized)
	case apperr.KindForbidden:
		return http.StatusForbidden, New(MsgForbidden)
	case apperr.KindNotFound:
		return http.StatusNotFound, New(e.Msg)
	case apperr.KindConflict:
		return http.StatusConflict, New(e.Msg)
	case apperr.KindInvalidArgument:
		return http.StatusUnprocessableEntity, New(e.Msg)
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable, New(MsgUnavailable)
	default:
		return http.StatusInternalServerError, New(MsgInternal)
	}
}
