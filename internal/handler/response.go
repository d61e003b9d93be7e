package handler

// RESPONSE HELPERS:
// Every handler answers one of two kinds of caller:
//
//   - API clients (middleware.WantsJSON): a JSON body and a meaningful status
//   - browsers: a flash message and a redirect, like a classic form post
//
// CONSISTENT ERROR FORMAT:
// Every JSON error has the same shape:
//
//	{"error": "not_found", "message": "task not found with slug buy-milk"}
//
// Validation errors add the per-field messages:
//
//	{"error": "validation_error", "message": "...", "fields": {"title": "title is required"}}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/taskflow/internal/apperror"
)

// ErrorResponse is the standard error format returned by all JSON endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`            // Machine-readable error type (e.g., "not_found")
	Message string            `json:"message"`          // Human-readable description
	Fields  map[string]string `json:"fields,omitempty"` // Per-field messages for validation errors
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE writing the body. Once Encode writes,
// the headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to an HTTP status and a machine-readable code.
//
// WHY HERE AND NOT IN THE SERVICE?
// The service layer doesn't know about HTTP. A CLI would map ErrNotFound to a
// message, gRPC to codes.NotFound; only this package speaks status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrDuplicate):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// Internal errors never expose their message: it may contain SQL, file paths
// or driver details. The caller is expected to have logged the real error.
func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)

	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "an internal error occurred",
		})
		return
	}

	resp := ErrorResponse{Error: code, Message: appErr.Message}
	if status == http.StatusBadRequest {
		resp.Fields = appErr.Fields
	}
	writeJSON(w, status, resp)
}

// fieldErrors returns the per-field messages of a validation error, or a
// single "non_field" entry for any other error.
func fieldErrors(err error) map[string]string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if len(appErr.Fields) > 0 {
			return appErr.Fields
		}
		if appErr.Field != "" {
			return map[string]string{appErr.Field: appErr.Message}
		}
		return map[string]string{"non_field": appErr.Message}
	}
	return map[string]string{"non_field": "an internal error occurred"}
}

// userMessage is the text shown to a browser user in a flash message.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if apperror.IsInternal(err) || !errors.As(err, &appErr) {
		return "Something went wrong. Please try again."
	}
	return appErr.Message
}

// logIfInternal logs err at ERROR when it is a server-side failure. Client
// mistakes are already visible in the request log's status code.
func logIfInternal(logger *slog.Logger, r *http.Request, msg string, err error) {
	if apperror.IsInternal(err) {
		logger.ErrorContext(r.Context(), msg,
			slog.String("path", r.URL.Path),
			apperror.Attr(err),
		)
	}
}
