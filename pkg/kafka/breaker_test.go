package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPublisher struct {
	calls int
	err   error
}

func (p *countingPublisher) Publish(context.Context, string, *Event) error {
	p.calls++
	return p.err
}

func testBreakerConfig(name string) BreakerConfig {
	cfg := DefaultBreakerConfig(name)
	cfg.MinRequests = 2
	cfg.Timeout = 50 * time.Millisecond
	return cfg
}

func TestBreakerPublisher_PassesThrough(t *testing.T) {
	next := &countingPublisher{}
	b := NewBreakerPublisher(next, testBreakerConfig("breaker-pass"), newTestLogger())

	require.NoError(t, b.Publish(context.Background(), "topic", &Event{}))
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPublisher_OpensAfterFailures(t *testing.T) {
	next := &countingPublisher{err: errors.New("broker down")}
	b := NewBreakerPublisher(next, testBreakerConfig("breaker-open"), newTestLogger())
	ctx := context.Background()

	assert.Error(t, b.Publish(ctx, "topic", &Event{}))
	assert.Error(t, b.Publish(ctx, "topic", &Event{}))
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, float64(2), testutil.ToFloat64(BreakerState.WithLabelValues("breaker-open")))

	err := b.Publish(ctx, "topic", &Event{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, next.calls, "open breaker must not call the broker")
	assert.Equal(t, float64(1), testutil.ToFloat64(BreakerRejected.WithLabelValues("breaker-open")))
}

func TestBreakerPublisher_RecoversAfterTimeout(t *testing.T) {
	next := &countingPublisher{err: errors.New("broker down")}
	b := NewBreakerPublisher(next, testBreakerConfig("breaker-recover"), newTestLogger())
	ctx := context.Background()

	_ = b.Publish(ctx, "topic", &Event{})
	_ = b.Publish(ctx, "topic", &Event{})
	require.Equal(t, gobreaker.StateOpen, b.State())

	next.err = nil
	time.Sleep(80 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, "topic", &Event{}))
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
