// Package apperr defines the error taxonomy shared by every domain service and
// its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrInvalidState        = errors.New("invalid state")
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
)

// Error carries one of the sentinel kinds plus a client-facing message.
type Error struct {
	Err     error             `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

// InvalidState reports an operation attempted from a status that does not allow it.
func InvalidState(resource, id, from, op string) *Error {
	return &Error{
		Err:     ErrInvalidState,
		Code:    "INVALID_STATE",
		Message: fmt.Sprintf("cannot %s %s in status %s", op, resource, from),
		Details: map[string]string{"resource": resource, "id": id, "status": from, "operation": op},
	}
}

func Validation(message string, details map[string]string) *Error {
	return &Error{
		Err:     ErrValidation,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}
}

func NotFound(resource, id string) *Error {
	return &Error{
		Err:     ErrNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

// Upstream wraps a failure of a collaborator (database, model API, object store).
func Upstream(service string, err error) *Error {
	return &Error{
		Err:     ErrUpstreamUnavailable,
		Code:    "UPSTREAM_UNAVAILABLE",
		Message: fmt.Sprintf("%s unavailable", service),
		Details: map[string]string{"service": service},
		cause:   err,
	}
}

func Conflict(message string) *Error {
	return &Error{
		Err:     ErrConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

func Forbidden(message string) *Error {
	return &Error{
		Err:     ErrForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// HTTPStatus maps an error to the status code a handler should answer with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope returned to clients.
type Body struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ToHTTP converts err into an echo.HTTPError with a structured body.
// Unclassified errors are reported without their text.
func ToHTTP(err error) *echo.HTTPError {
	var ae *Error
	if errors.As(err, &ae) {
		return echo.NewHTTPError(HTTPStatus(err), Body{Code: ae.Code, Message: ae.Message, Details: ae.Details}).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, Body{Code: "INTERNAL_ERROR", Message: "internal server error"}).SetInternal(err)
}
