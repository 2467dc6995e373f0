package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix is prepended to the source topic of dead-lettered messages.
const DLQTopicPrefix = "cartify.dlq"

// DLQTopic returns the dead-letter topic for originalTopic.
func DLQTopic(originalTopic string) string {
	return DLQTopicPrefix + "." + originalTopic
}

// DeadLetterQueue copies messages a consumer gave up on to a DLQ topic,
// with the failure recorded in headers.
type DeadLetterQueue struct {
	writer messageWriter
	group  string
	logger *slog.Logger
}

// NewDeadLetterQueue creates a DLQ writer for consumerGroup.
func NewDeadLetterQueue(brokers []string, consumerGroup string, logger *slog.Logger) *DeadLetterQueue {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              1,
		BatchTimeout:           100 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newDeadLetterQueue(w, consumerGroup, logger)
}

func newDeadLetterQueue(w messageWriter, consumerGroup string, logger *slog.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{writer: w, group: consumerGroup, logger: logger}
}

// Send publishes msg to its DLQ topic.
func (d *DeadLetterQueue) Send(ctx context.Context, msg kafka.Message, cause error) error {
	topic := DLQTopic(msg.Topic)

	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(d.group)},
	)
	if cause != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(cause.Error())})
	}

	err := d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to publish message to DLQ",
			slog.String("dlq_topic", topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish to DLQ %s: %w", topic, err)
	}

	d.logger.WarnContext(ctx, "message sent to DLQ",
		slog.String("dlq_topic", topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)
	return nil
}

// Close flushes and closes the DLQ writer.
func (d *DeadLetterQueue) Close() error {
	return d.writer.Close()
}
