package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
)

// Pre-marshaled so the 413 can always be written, matching the admission
// envelope format.
const payloadTooLargeJSON = `{"ok":false,"error":"payload_too_large"}`

// MaxBodyBytes limits request body size. The Content-Length header is checked
// first for early rejection; the body is then read through MaxBytesReader to
// cover chunked encoding and spoofed headers.
func MaxBodyBytes(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > 0 && r.ContentLength > maxBytes {
				writePayloadTooLarge(w, r)
				return
			}

			body := http.MaxBytesReader(w, r.Body, maxBytes)
			buf, err := io.ReadAll(body)
			if err != nil {
				slog.WarnContext(r.Context(), "request body size limit exceeded",
					"method", r.Method,
					"path", r.URL.Path,
					"content_length", r.ContentLength,
					"limit", maxBytes)
				writePayloadTooLarge(w, r)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(buf))
			next.ServeHTTP(w, r)
		})
	}
}

func writePayloadTooLarge(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	if _, err := w.Write([]byte(payloadTooLargeJSON)); err != nil {
		slog.ErrorContext(r.Context(), "failed to write payload too large response", "error", err)
	}
}
