package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProducerMessagesPublished counts successfully published messages.
	ProducerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Total number of Kafka messages published",
		},
		[]string{"topic"},
	)

	// ProducerPublishErrors counts failed publish attempts.
	ProducerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Total number of Kafka publish errors",
		},
		[]string{"topic"},
	)

	// ProducerPublishDuration observes the duration of publish calls.
	ProducerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	// BreakerState reports publisher circuit breaker state (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_publisher_breaker_state",
			Help: "Current state of the publisher circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// BreakerRejected counts publishes rejected while the breaker was open.
	BreakerRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_publisher_breaker_rejected_total",
			Help: "Total number of publishes rejected by an open circuit breaker",
		},
		[]string{"name"},
	)

	// ConsumerMessagesReceived counts messages fetched from a topic.
	ConsumerMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_received_total",
			Help: "Total number of Kafka messages received",
		},
		[]string{"topic", "group"},
	)

	// ConsumerMessagesProcessed counts messages whose handler succeeded.
	ConsumerMessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_processed_total",
			Help: "Total number of Kafka messages processed successfully",
		},
		[]string{"topic", "group"},
	)

	// ConsumerMessagesFailed counts malformed messages and messages that failed every retry.
	ConsumerMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_failed_total",
			Help: "Total number of Kafka messages that could not be processed",
		},
		[]string{"topic", "group"},
	)

	// ConsumerProcessingDuration observes time spent on one message, retries included.
	ConsumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Duration of Kafka message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic", "group"},
	)

	// ConsumerDLQPublished counts messages forwarded to a dead-letter topic.
	ConsumerDLQPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_dlq_published_total",
			Help: "Total number of Kafka messages sent to a dead-letter queue",
		},
		[]string{"topic", "group"},
	)

	// ConsumerMessagesDuplicate counts events skipped as already processed.
	ConsumerMessagesDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_duplicate_total",
			Help: "Total number of duplicate Kafka events skipped",
		},
		[]string{"event_type"},
	)
)
