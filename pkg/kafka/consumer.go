package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/cartify/cartify/pkg/logger"
)

// Handler is a function that processes a Kafka event.
type Handler func(ctx context.Context, event *Event) error

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
	// MaxRetries is the number of handler attempts before a message is
	// dead-lettered and skipped.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
}

// DefaultConsumerConfig returns a config for one topic and consumer group.
func DefaultConsumerConfig(brokers []string, groupID, topic string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:      brokers,
		GroupID:      groupID,
		Topic:        topic,
		MinBytes:     1,
		MaxBytes:     10e6,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// Consumer reads one topic as part of a consumer group and commits each
// message once it is handled, dead-lettered or found malformed.
type Consumer struct {
	reader    messageReader
	cfg       ConsumerConfig
	handler   Handler
	dlq       *DeadLetterQueue
	logger    *slog.Logger
	closeOnce sync.Once
}

// ConsumerOption customizes a Consumer.
type ConsumerOption func(*Consumer)

// WithDeadLetterQueue forwards messages that fail every retry to dlq.
func WithDeadLetterQueue(dlq *DeadLetterQueue) ConsumerOption {
	return func(c *Consumer) { c.dlq = dlq }
}

// NewConsumer creates a Kafka consumer for cfg.Topic in cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return newConsumer(r, cfg, handler, logger, opts...)
}

func newConsumer(r messageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	c := &Consumer{
		reader:  r,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(slog.String("topic", cfg.Topic), slog.String("group", cfg.GroupID)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes messages until ctx is canceled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			if !sleepCtx(ctx, c.cfg.RetryBackoff) {
				return c.Close()
			}
			continue
		}

		c.process(ctx, msg)

		// Uncommitted messages are redelivered to the group after a restart.
		if ctx.Err() != nil {
			return c.Close()
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	start := time.Now()
	ConsumerMessagesReceived.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Inc()
	defer func() {
		ConsumerProcessingDuration.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Observe(time.Since(start).Seconds())
	}()

	ctx = otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg.Headers))

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to unmarshal event",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		ConsumerMessagesFailed.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Inc()
		c.deadLetter(ctx, msg, fmt.Errorf("unmarshal event: %w", err))
		return
	}

	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			ConsumerMessagesProcessed.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Inc()
			return
		}
		c.logger.WarnContext(ctx, "handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.cfg.MaxRetries),
			slog.String("error", lastErr.Error()),
		)
		if attempt < c.cfg.MaxRetries && !sleepCtx(ctx, time.Duration(attempt)*c.cfg.RetryBackoff) {
			return
		}
	}

	ConsumerMessagesFailed.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Inc()
	c.logger.ErrorContext(ctx, "handler failed after all retries, skipping message",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("error", lastErr.Error()),
	)
	c.deadLetter(ctx, msg, lastErr)
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Send(ctx, msg, cause); err != nil {
		return
	}
	ConsumerDLQPublished.WithLabelValues(c.cfg.Topic, c.cfg.GroupID).Inc()
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
