// Package apperror defines the typed error taxonomy shared by the service
// and repository layers.
//
// Services never let raw store error text cross their boundary. Instead they
// return (or wrap) one of the sentinels below, and the HTTP layer maps each
// sentinel to a status code with errors.Is. Callers branch on kind, never on
// error strings.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("service unavailable")
)

type AppError struct {
	Err     error  // sentinel this error wraps
	Message string // human-readable error message
	Field   string // optional: field causing the error (e.g. the violated unique key)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// DuplicateKey reports a uniqueness-constraint violation on the given field.
// The repository raises it when an INSERT loses a race against a concurrent
// write; the reconciliation engine treats it as retryable (one re-lookup).
func DuplicateKey(field string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("user with this %s already exists", field),
		Field:   field,
	}
}

// Unauthorized returns an AppError for authentication failures.
// HTTP handlers map this to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unavailable reports that the backing store could not be reached.
// The engine propagates it without retrying; the caller decides backoff.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}

// ConflictField extracts the violated unique-key field from a duplicate-key
// error, or "" if err is not a conflict.
func ConflictField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && errors.Is(err, ErrConflict) {
		return appErr.Field
	}
	return ""
}
