package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}

func TestMaxBodyBytes_AllowsSmallBody(t *testing.T) {
	handler := MaxBodyBytes(64)(echoHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"type":"ping"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"type":"ping"}`, rec.Body.String())
}

func TestMaxBodyBytes_RejectsOversizedBody(t *testing.T) {
	handler := MaxBodyBytes(16)(echoHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(strings.Repeat("x", 64)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"payload_too_large"}`, rec.Body.String())
}

func TestMaxBodyBytes_RejectsByContentLengthHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})
	handler := MaxBodyBytes(16)(next)

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(strings.Repeat("x", 64)))
	req.ContentLength = 64
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMaxBodyBytes_BodyAtExactLimit(t *testing.T) {
	handler := MaxBodyBytes(8)(echoHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader("12345678"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345678", rec.Body.String())
}
