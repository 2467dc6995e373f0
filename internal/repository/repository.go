package repository

import (
	"context"

	"github.com/cartify/cartify/internal/domain"
)

// AddressRepository is the persistent address collection. Lookups that
// match nothing return apperrors.ErrNotFound.
type AddressRepository interface {
	// FindMany returns matching addresses, default-shipping first, then newest first.
	FindMany(ctx context.Context, filter domain.AddressFilter) ([]domain.Address, error)
	FindOne(ctx context.Context, filter domain.AddressFilter) (*domain.Address, error)
	InsertOne(ctx context.Context, a *domain.Address) error
	// UpdateMany applies patch to every match and returns how many changed.
	UpdateMany(ctx context.Context, filter domain.AddressFilter, patch domain.AddressPatch) (int64, error)
	// UpdateOne applies patch to the address selected by filter.ID and returns it.
	UpdateOne(ctx context.Context, filter domain.AddressFilter, patch domain.AddressPatch) (*domain.Address, error)
	// DeleteOne removes the address selected by filter.ID and returns it.
	DeleteOne(ctx context.Context, filter domain.AddressFilter) (*domain.Address, error)
	// DeleteMany removes every match and returns how many were removed.
	DeleteMany(ctx context.Context, filter domain.AddressFilter) (int64, error)
}

// OwnerDirectory answers whether an owner account exists.
type OwnerDirectory interface {
	Exists(ctx context.Context, ownerID string) (bool, error)
}
