package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("address-service")

	assert.Equal(t, "address-service", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
}

func TestInitTracer_DisabledInstallsPropagatorOnly(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := InitTracer(context.Background(), DefaultConfig("address-service"))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK)
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestInitTracer_Enabled(t *testing.T) {
	restoreGlobals(t)

	cfg := DefaultConfig("address-service")
	cfg.Enabled = true
	cfg.OTLPEndpoint = "127.0.0.1:0"
	cfg.SampleRate = 0.5

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)
	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, isSDK)

	// The exporter cannot reach 127.0.0.1:0, so shutdown may report a flush error.
	_ = shutdown(context.Background())
}

func TestSampler(t *testing.T) {
	tests := map[float64]string{
		1.5:  "AlwaysOnSampler",
		1.0:  "AlwaysOnSampler",
		0.25: "TraceIDRatioBased",
		0:    "AlwaysOffSampler",
		-1:   "AlwaysOffSampler",
	}
	for rate, want := range tests {
		assert.Contains(t, Sampler(rate).Description(), want, "rate %v", rate)
	}
}

func TestTracer_DoesNotPanic(t *testing.T) {
	_, span := Tracer("address-service").Start(context.Background(), "op")
	assert.NotPanics(t, func() { span.End() })
}
