package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// ----------------------------------------------------------------------------
// Event
// ----------------------------------------------------------------------------

func TestNewEvent_Fields(t *testing.T) {
	type payload struct {
		AddressID string `json:"address_id"`
		OwnerID   string `json:"owner_id"`
	}

	data := payload{AddressID: "addr-1", OwnerID: "owner-1"}
	event, err := NewEvent("address.created", "addr-1", "address", "address-service", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "address.created", event.EventType)
	assert.Equal(t, "addr-1", event.AggregateID)
	assert.Equal(t, "address", event.AggregateType)
	assert.Equal(t, "address-service", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var decoded payload
	require.NoError(t, event.UnmarshalData(&decoded))
	assert.Equal(t, data, decoded)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("address.created", "addr-1", "address", "address-service", make(chan int))
	require.Error(t, err)
}

func TestEvent_WithCorrelationID(t *testing.T) {
	event := (&Event{}).WithCorrelationID("req-1")
	assert.Equal(t, "req-1", event.CorrelationID)
}

func TestUnmarshalEvent(t *testing.T) {
	_, err := UnmarshalEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = UnmarshalEvent([]byte(`{"event_id":"e1","data":{}}`))
	assert.ErrorContains(t, err, "no event_type")

	event, err := UnmarshalEvent([]byte(`{"event_id":"e1","event_type":"user.deleted"}`))
	require.NoError(t, err)
	var target map[string]string
	assert.ErrorContains(t, event.UnmarshalData(&target), "has no data")
}

// ----------------------------------------------------------------------------
// Producer
// ----------------------------------------------------------------------------

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, []string{"localhost:9092"}, newTestLogger())

	event, err := NewEvent("address.default_changed", "addr-9", "address", "address-service", map[string]string{"kind": "billing"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	before := testutil.ToFloat64(ProducerMessagesPublished.WithLabelValues("cartify.address.default_changed"))
	require.NoError(t, p.Publish(context.Background(), "cartify.address.default_changed", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "cartify.address.default_changed", msg.Topic)
	assert.Equal(t, "addr-9", string(msg.Key))
	assert.Equal(t, "address.default_changed", headerValue(msg, "event_type"))
	assert.Equal(t, "address-service", headerValue(msg, "source"))
	assert.Equal(t, "corr-1", headerValue(msg, "correlation_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)

	after := testutil.ToFloat64(ProducerMessagesPublished.WithLabelValues("cartify.address.default_changed"))
	assert.Equal(t, before+1, after)
}

func TestProducer_PublishInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	p := newProducer(w, nil, newTestLogger())
	event, err := NewEvent("address.updated", "addr-1", "address", "address-service", struct{}{})
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, "cartify.address.updated", event))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headerValue(w.msgs[0], "traceparent"))
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, nil, newTestLogger())
	event, err := NewEvent("address.deleted", "addr-1", "address", "address-service", struct{}{})
	require.NoError(t, err)

	before := testutil.ToFloat64(ProducerPublishErrors.WithLabelValues("cartify.address.deleted"))
	err = p.Publish(context.Background(), "cartify.address.deleted", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to cartify.address.deleted")
	assert.Equal(t, before+1, testutil.ToFloat64(ProducerPublishErrors.WithLabelValues("cartify.address.deleted")))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newProducer(w, nil, newTestLogger()).Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "any", &Event{}))
}

// ----------------------------------------------------------------------------
// Header carrier
// ----------------------------------------------------------------------------

func TestHeaderCarrier_SetGetKeys(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("value1")}}
	carrier := NewHeaderCarrier(&headers)

	assert.Equal(t, "value1", carrier.Get("existing"))
	assert.Equal(t, "", carrier.Get("missing"))

	carrier.Set("existing", "updated")
	carrier.Set("traceparent", "00-abc-def-01")

	assert.Equal(t, "updated", carrier.Get("existing"))
	assert.ElementsMatch(t, []string{"existing", "traceparent"}, carrier.Keys())
	assert.Len(t, headers, 2)
}
