// Package response implements the wire envelope shared by every admission
// endpoint: {"ok":true, ...} on success, {"ok":false, "error":"<code>"} on
// failure.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rezkam/jobq/internal/domain"
)

// Machine-readable error codes surfaced to callers.
const (
	CodeInvalidJSON   = "invalid_json"
	CodeInvalidInput  = "invalid_input"
	CodeInvalidID     = "invalid_id"
	CodeInvalidStatus = "invalid_status"
	CodeNotFound      = "not_found"
	CodeUnavailable   = "unavailable"
	CodeDBUnreachable = "db_unreachable"
	CodeInternal      = "internal"
)

// Success writes {"ok":true} merged with the given fields.
func Success(w http.ResponseWriter, statusCode int, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	write(w, statusCode, body)
}

// Failure writes {"ok":false,"error":code}.
func Failure(w http.ResponseWriter, statusCode int, code string) {
	write(w, statusCode, map[string]any{"ok": false, "error": code})
}

// FromDomainError maps engine errors onto failure responses. Internal error
// detail is logged server-side, never leaked to the caller.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		Failure(w, http.StatusBadRequest, CodeInvalidInput)
	case errors.Is(err, domain.ErrJobNotFound):
		Failure(w, http.StatusNotFound, CodeNotFound)
	case errors.Is(err, domain.ErrTransient):
		slog.WarnContext(r.Context(), "request failed on transient database error", "error", err)
		Failure(w, http.StatusServiceUnavailable, CodeUnavailable)
	default:
		slog.ErrorContext(r.Context(), "internal server error", "error", err)
		Failure(w, http.StatusInternalServerError, CodeInternal)
	}
}

func write(w http.ResponseWriter, statusCode int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", "error", err)
	}
}
