package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/cartify/cartify/pkg/logger"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return logger.NewWithWriter("address-service", "info", buf)
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &out))
	return out
}

func TestRequestLogger_EnrichesContextLogger(t *testing.T) {
	var buf bytes.Buffer

	handler := RequestLogger(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside handler")
	}))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))
	ctx = logger.WithCorrelationID(ctx, "corr-1")
	ctx = WithOwnerID(ctx, "owner-7")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := lastLine(t, &buf)
	assert.Equal(t, "inside handler", out["msg"])
	assert.Equal(t, "corr-1", out["correlation_id"])
	assert.Equal(t, "owner-7", out["owner_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
}

func TestRequestLogger_AnonymousRequest(t *testing.T) {
	var buf bytes.Buffer

	handler := RequestLogger(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("anon")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	out := lastLine(t, &buf)
	assert.NotContains(t, out, "owner_id")
	assert.NotContains(t, out, "correlation_id")
}

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	var seen string

	handler := RequestLogging(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/addresses", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(CorrelationIDHeader))

	out := lastLine(t, &buf)
	assert.Equal(t, "http request", out["msg"])
	assert.Equal(t, "INFO", out["level"])
	assert.Equal(t, float64(http.StatusCreated), out["status"])
	assert.Equal(t, "/api/v1/addresses", out["path"])
}

func TestRequestLogging_KeepsIncomingIDAndLogsErrors(t *testing.T) {
	var buf bytes.Buffer

	handler := RequestLogging(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil)
	req.Header.Set(CorrelationIDHeader, "from-gateway")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "from-gateway", rr.Header().Get(CorrelationIDHeader))
	out := lastLine(t, &buf)
	assert.Equal(t, "ERROR", out["level"])
	assert.Equal(t, "from-gateway", out["correlation_id"])
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	var buf bytes.Buffer

	handler := Recovery(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil owner")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"an internal error occurred"}}`, rr.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "nil owner")
}

func TestRecovery_RepanicsOnAbortHandler(t *testing.T) {
	handler := Recovery(newBufferLogger(&bytes.Buffer{}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
