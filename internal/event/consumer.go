package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/cartify/cartify/pkg/kafka"
)

// Kafka topics consumed by the address service.
const (
	TopicUserDeleted = "cartify.user.deleted"
)

// ConsumerGroupUserDeleted is the consumer group reading TopicUserDeleted.
const ConsumerGroupUserDeleted = "address-service-user-deleted"

// AddressPurger defines what the consumer needs from the address service.
type AddressPurger interface {
	PurgeOwnerAddresses(ctx context.Context, ownerID string) (int64, error)
}

// UserDeletedData is the expected payload of a user.deleted event.
type UserDeletedData struct {
	UserID string `json:"user_id"`
}

// Consumer processes incoming Kafka events for the address service.
type Consumer struct {
	service AddressPurger
	logger  *slog.Logger
}

// NewConsumer creates a new event consumer for the address service.
func NewConsumer(service AddressPurger, logger *slog.Logger) *Consumer {
	return &Consumer{service: service, logger: logger}
}

// HandleUserDeleted removes every address of the deleted user. The
// aggregate ID is used when the payload carries no user ID.
func (c *Consumer) HandleUserDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data UserDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal user.deleted data: %w", err)
	}
	if data.UserID == "" {
		data.UserID = event.AggregateID
	}
	if data.UserID == "" {
		return fmt.Errorf("user.deleted event %s has no user id", event.EventID)
	}

	n, err := c.service.PurgeOwnerAddresses(ctx, data.UserID)
	if err != nil {
		return fmt.Errorf("purge addresses for user %s: %w", data.UserID, err)
	}

	c.logger.InfoContext(ctx, "addresses removed for deleted user",
		slog.String("user_id", data.UserID),
		slog.Int64("removed", n),
	)
	return nil
}
