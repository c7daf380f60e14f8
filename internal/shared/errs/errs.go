// Package errs defines the caller-facing error taxonomy of the analysis pipeline.
//
// Components return *Error values tagged with a Kind. The analysis orchestrator is
// the only place that turns arbitrary errors into this taxonomy; the HTTP layer maps
// kinds onto status codes with HTTPStatus.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindStorage        Kind = "storage_error"
	KindExtraction     Kind = "extraction_error"
	KindTimeout        Kind = "timeout_error"
	KindConnection     Kind = "connection_error"
	KindRateLimit      Kind = "rate_limit_error"
	KindProviderServer Kind = "provider_server_error"
	KindRequest        Kind = "request_error"
)

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, errs.Validation("")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind with an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func Storage(message string, cause error) *Error {
	return Wrap(KindStorage, message, cause)
}

func Extraction(message string, cause error) *Error {
	return Wrap(KindExtraction, message, cause)
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsTransient reports whether a retry may succeed.
func (k Kind) IsTransient() bool {
	switch k {
	case KindTimeout, KindConnection, KindRateLimit, KindProviderServer:
		return true
	default:
		return false
	}
}

// IsClientFault reports whether the caller supplied bad input.
func (k Kind) IsClientFault() bool {
	return k == KindValidation || k == KindExtraction
}

// HTTPStatus maps a kind onto a response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindExtraction:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindConnection, KindRateLimit:
		return http.StatusServiceUnavailable
	case KindProviderServer, KindRequest:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
