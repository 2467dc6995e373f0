package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cartify/cartify/internal/domain"
	pkgkafka "github.com/cartify/cartify/pkg/kafka"
	"github.com/cartify/cartify/pkg/logger"
)

// Kafka topic constants for address domain events.
const (
	TopicAddressCreated        = "cartify.address.created"
	TopicAddressUpdated        = "cartify.address.updated"
	TopicAddressDeleted        = "cartify.address.deleted"
	TopicAddressDefaultChanged = "cartify.address.default_changed"
	TopicAddressCurrentChanged = "cartify.address.current_changed"
)

// AggregateTypeAddress is the aggregate type of every address event.
const AggregateTypeAddress = "address"

// SourceAddressService identifies events originating from this service.
const SourceAddressService = "address-service"

// AddressData is the full address snapshot carried by created and updated events.
type AddressData struct {
	ID                string `json:"id"`
	OwnerID           string `json:"owner_id"`
	Label             string `json:"label,omitempty"`
	City              string `json:"city"`
	State             string `json:"state"`
	PostalCode        string `json:"postal_code"`
	Tag               string `json:"tag"`
	IsDefaultShipping bool   `json:"is_default_shipping"`
	IsDefaultBilling  bool   `json:"is_default_billing"`
	IsCurrentAddress  bool   `json:"is_current_address"`
}

// AddressDeletedData is the payload for an address.deleted event.
type AddressDeletedData struct {
	AddressID string `json:"address_id"`
	OwnerID   string `json:"owner_id"`
}

// DefaultChangedData is the payload for an address.default_changed event.
type DefaultChangedData struct {
	AddressID string `json:"address_id"`
	OwnerID   string `json:"owner_id"`
	Kind      string `json:"kind"`
}

// CurrentChangedData is the payload for an address.current_changed event.
type CurrentChangedData struct {
	AddressID string `json:"address_id"`
	OwnerID   string `json:"owner_id"`
}

// Producer publishes address domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the address service.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

func snapshot(a *domain.Address) AddressData {
	return AddressData{
		ID:                a.ID,
		OwnerID:           a.OwnerID,
		Label:             a.Label,
		City:              a.City,
		State:             a.State,
		PostalCode:        a.PostalCode,
		Tag:               string(a.Tag),
		IsDefaultShipping: a.IsDefaultShipping,
		IsDefaultBilling:  a.IsDefaultBilling,
		IsCurrentAddress:  a.IsCurrentAddress,
	}
}

// PublishAddressCreated publishes an address.created event.
func (p *Producer) PublishAddressCreated(ctx context.Context, a *domain.Address) error {
	return p.publish(ctx, TopicAddressCreated, a.ID, a.OwnerID, snapshot(a))
}

// PublishAddressUpdated publishes an address.updated event.
func (p *Producer) PublishAddressUpdated(ctx context.Context, a *domain.Address) error {
	return p.publish(ctx, TopicAddressUpdated, a.ID, a.OwnerID, snapshot(a))
}

// PublishAddressDeleted publishes an address.deleted event.
func (p *Producer) PublishAddressDeleted(ctx context.Context, a *domain.Address) error {
	return p.publish(ctx, TopicAddressDeleted, a.ID, a.OwnerID, AddressDeletedData{
		AddressID: a.ID,
		OwnerID:   a.OwnerID,
	})
}

// PublishDefaultChanged publishes an address.default_changed event.
func (p *Producer) PublishDefaultChanged(ctx context.Context, a *domain.Address, kind domain.DefaultKind) error {
	return p.publish(ctx, TopicAddressDefaultChanged, a.ID, a.OwnerID, DefaultChangedData{
		AddressID: a.ID,
		OwnerID:   a.OwnerID,
		Kind:      string(kind),
	})
}

// PublishCurrentChanged publishes an address.current_changed event.
func (p *Producer) PublishCurrentChanged(ctx context.Context, a *domain.Address) error {
	return p.publish(ctx, TopicAddressCurrentChanged, a.ID, a.OwnerID, CurrentChangedData{
		AddressID: a.ID,
		OwnerID:   a.OwnerID,
	})
}

func (p *Producer) publish(ctx context.Context, topic, addressID, ownerID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, addressID, AggregateTypeAddress, SourceAddressService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published address event",
		slog.String("topic", topic),
		slog.String("address_id", addressID),
		slog.String("owner_id", ownerID),
	)
	return nil
}
