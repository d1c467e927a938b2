package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels classify failures for errors.Is. Every AppError built by the
// constructors below wraps one of them.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrUpstream       = errors.New("upstream failure")
	ErrServiceUnavail = errors.New("service unavailable")
)

// AppError is an error with a client-facing code, message and HTTP status.
// Message is sent to clients verbatim; Err is for logs only.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError with a custom code. cause is usually one of the
// package sentinels so that errors.Is keeps working across layers.
func New(status int, code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: cause}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return New(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s with id %s not found", resource, id), ErrNotFound)
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return New(http.StatusConflict, "ALREADY_EXISTS",
		fmt.Sprintf("%s with %s %q already exists", resource, field, value), ErrAlreadyExists)
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return New(http.StatusBadRequest, "INVALID_INPUT", message, ErrInvalidInput)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message, ErrUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return New(http.StatusForbidden, "FORBIDDEN", message, ErrForbidden)
}

// ServiceUnavailable creates a 503 error for a feature that is switched off
// or a dependency that is down.
func ServiceUnavailable(message string) *AppError {
	return New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, ErrServiceUnavail)
}

// Upstream creates a 502 error for a failed call to an external dependency.
// The message is shown to clients, so it must not carry upstream details.
func Upstream(code, message string, err error) *AppError {
	if err == nil {
		err = ErrUpstream
	} else if !errors.Is(err, ErrUpstream) {
		err = fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return New(http.StatusBadGateway, code, message, err)
}

// Classify returns the status, code and client-safe message for err.
// AppErrors pass through; bare sentinels get a generic message; anything
// else is a 500.
func Classify(err error) (status int, code, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Code, appErr.Message
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS", "resource already exists"
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT", "invalid input"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway, "UPSTREAM_ERROR", "upstream service failed"
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}
