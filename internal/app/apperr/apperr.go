// Package apperr defines the application-layer error the HTTP adapter maps to a response.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the failure category. Every Kind has one HTTP status.
type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindConflict           Kind = "conflict"
	KindBadRequest         Kind = "bad_request"
	KindServiceUnavailable Kind = "service_unavailable"
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
)

var statusByKind = map[Kind]int{
	KindUnauthenticated:    http.StatusUnauthorized,
	KindInvalidCredentials: http.StatusUnauthorized,
	KindConflict:           http.StatusConflict,
	KindBadRequest:         http.StatusBadRequest,
	KindServiceUnavailable: http.StatusServiceUnavailable,
	KindNotFound:           http.StatusNotFound,
	KindValidation:         http.StatusBadRequest,
}

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Details map[string]any

	// cause is kept for logs only and never rendered.
	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// New builds an Error of kind k.
func New(k Kind, code, message string) *Error {
	return &Error{Kind: k, Status: statusByKind[k], Code: code, Message: message}
}

// WithDetails returns e with details attached.
func (e *Error) WithDetails(d map[string]any) *Error {
	e.Details = d
	return e
}

// WithCause returns e with an underlying cause attached for logging.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// As unwraps err to an *Error.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == k
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, "UNAUTHORIZED", message)
}

func InvalidCredentials() *Error {
	return New(KindInvalidCredentials, "INVALID_CREDENTIALS", "Invalid email or password")
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

func BadRequest(code, message string) *Error {
	return New(KindBadRequest, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func ServiceUnavailable(message string) *Error {
	return New(KindServiceUnavailable, "SERVICE_UNAVAILABLE", message)
}

// Validation reports invalid input fields; details maps field name to reason.
func Validation(message string, details map[string]any) *Error {
	return New(KindValidation, "VALIDATION_ERROR", message).WithDetails(details)
}
