package apperror

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrDuplicate       = errors.New("duplicate entity")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrStore           = errors.New("store failure")
)

type AppError struct {
	Err     error             // actual error
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: per-field messages for validation errors
	cause   error             // underlying driver error for store failures, never shown to users
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  map[string]string{field: message},
	}
}

// Invalid builds a validation error carrying one message per offending field.
// Message lists the fields in a stable order so logs are deterministic.
func Invalid(fields map[string]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fields[name])
	}

	e := &AppError{
		Err:     ErrValidation,
		Message: strings.Join(msgs, "; "),
		Fields:  fields,
	}
	if len(names) == 1 {
		e.Field = names[0]
	}
	return e
}

func Duplicate(resource, field string) *AppError {
	return &AppError{
		Err:     ErrDuplicate,
		Message: fmt.Sprintf("%s with this %s already exists", resource, field),
		Field:   field,
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

// Unauthenticated is returned when no live session backs the request.
// Handlers turn it into a 401 or a redirect to the login page.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// Store wraps a driver error. The message stays generic; the cause is still
// reachable through errors.Is / errors.As for logging.
func Store(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStore,
		Message: fmt.Sprintf("store failure while %s", op),
		cause:   cause,
	}
}

// Cause returns the driver error behind a store failure, or nil.
func (e *AppError) Cause() error {
	return e.cause
}

// IsInternal reports whether err is a server-side failure rather than one of
// the client-caused kinds (not found, invalid, duplicate, forbidden,
// unauthenticated). Store failures and unclassified errors are internal.
func IsInternal(err error) bool {
	for _, clientErr := range []error{ErrNotFound, ErrValidation, ErrDuplicate, ErrForbidden, ErrUnauthenticated} {
		if errors.Is(err, clientErr) {
			return false
		}
	}
	return true
}

// Attr renders err for a log line. A store failure's message is deliberately
// generic, so its driver error is logged next to it as error.cause:
//
//	error.message="store failure while listing tasks" error.cause="sql: database is closed"
//
// Any other error is logged as a plain error=<message>.
func Attr(err error) slog.Attr {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.cause != nil {
		return slog.Group("error",
			slog.String("message", err.Error()),
			slog.String("cause", appErr.cause.Error()),
		)
	}
	return slog.String("error", err.Error())
}
