package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestLoggingAttachesEnvelopeError(t *testing.T) {
	logs := captureLogs(t)

	r := chi.NewRouter()
	r.Use(Logging)
	r.Post("/api/v1/lists/{resource}/deletion/undo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"NO_ACTIVE_DELETION","message":"no deletion is pending"}}`))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/lists/agents/deletion/undo", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
	out := logs.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "resource=agents")
	assert.Contains(t, out, "error_code=NO_ACTIVE_DELETION")
}

func TestLoggingKeepsIncomingRequestID(t *testing.T) {
	captureLogs(t)

	handler := Logging(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lists", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	logs := captureLogs(t)

	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/lists", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, logs.String(), "panic=boom")
}
