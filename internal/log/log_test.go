package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Component: ComponentHTTP, Output: &buf}), &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_AddsComponent(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)

	logger.Info("hello", "k", "v")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "component=http")
	assert.Contains(t, out, "k=v")
	assert.NotContains(t, out, "hidden")

	buf.Reset()
	logger.WithComponent(ComponentSync).Warn("switched")
	assert.Contains(t, buf.String(), "component=sync")
	assert.Equal(t, ComponentSync, logger.WithComponent(ComponentSync).Component())
}

func TestMiddleware_FromContext(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelDebug)

	var seen *Logger
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
			seen.Info("inside")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.NotNil(t, seen)
	assert.Contains(t, buf.String(), "request_id=req-1")
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestStructuredLogger(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelDebug)
	sl := NewStructuredLogger(logger)
	req := httptest.NewRequest(http.MethodPost, "/api/sync?x=1", nil)
	ctx := context.Background()

	sl.LogHTTPEnd(ctx, req, "req-2", http.StatusInternalServerError, 12, "10.0.0.1")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "status_code=500")

	buf.Reset()
	sl.LogHTTPEnd(ctx, req, "req-3", http.StatusBadRequest, 1, "")
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	sl.LogArchived(ctx, 3)
	assert.Contains(t, buf.String(), "count=3")

	buf.Reset()
	sl.LogError(ctx, "boom", errors.New("disk full"), OpArchive, nil)
	assert.Contains(t, buf.String(), `error="disk full"`)
	assert.Contains(t, buf.String(), "operation=archive")
}
