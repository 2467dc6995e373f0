// Package memory keeps addresses in process memory. It backs the service
// tests and ADDRESS_STORE=memory local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cartify/cartify/internal/domain"
	apperrors "github.com/cartify/cartify/pkg/errors"
)

// AddressRepository implements repository.AddressRepository on a map.
type AddressRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Address
	order []string
	now   func() time.Time
}

// NewAddressRepository creates an empty in-memory address store.
func NewAddressRepository() *AddressRepository {
	return &AddressRepository{
		byID: make(map[string]*domain.Address),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// FindMany returns copies of all matching addresses.
func (r *AddressRepository) FindMany(ctx context.Context, filter domain.AddressFilter) ([]domain.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Address{}
	for _, id := range r.order {
		if a := r.byID[id]; filter.Matches(a) {
			out = append(out, *a)
		}
	}
	domain.SortForOwner(out)
	return out, nil
}

// FindOne returns the first match in insertion order.
func (r *AddressRepository) FindOne(ctx context.Context, filter domain.AddressFilter) (*domain.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if a := r.byID[id]; filter.Matches(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// InsertOne stores a copy of a. IDs must be unique.
func (r *AddressRepository) InsertOne(ctx context.Context, a *domain.Address) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID]; exists {
		return fmt.Errorf("insert address: duplicate id %s", a.ID)
	}
	cp := *a
	r.byID[a.ID] = &cp
	r.order = append(r.order, a.ID)
	return nil
}

// UpdateMany patches all matches.
func (r *AddressRepository) UpdateMany(ctx context.Context, filter domain.AddressFilter, patch domain.AddressPatch) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("update addresses: %w", err)
	}
	if filter.ID == "" && filter.OwnerID == "" {
		return 0, fmt.Errorf("update addresses: filter has no id or owner")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for _, id := range r.order {
		if a := r.byID[id]; filter.Matches(a) {
			patch.Apply(a, now)
			n++
		}
	}
	return n, nil
}

// UpdateOne patches the address with filter.ID if it also matches the rest
// of the filter.
func (r *AddressRepository) UpdateOne(ctx context.Context, filter domain.AddressFilter, patch domain.AddressPatch) (*domain.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}
	if filter.ID == "" {
		return nil, fmt.Errorf("update address: filter has no id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[filter.ID]
	if !ok || !filter.Matches(a) {
		return nil, apperrors.ErrNotFound
	}
	patch.Apply(a, r.now())
	cp := *a
	return &cp, nil
}

// DeleteOne removes the address with filter.ID if it also matches the rest
// of the filter, and returns it.
func (r *AddressRepository) DeleteOne(ctx context.Context, filter domain.AddressFilter) (*domain.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("delete address: %w", err)
	}
	if filter.ID == "" {
		return nil, fmt.Errorf("delete address: filter has no id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[filter.ID]
	if !ok || !filter.Matches(a) {
		return nil, apperrors.ErrNotFound
	}
	delete(r.byID, filter.ID)
	for i, oid := range r.order {
		if oid == filter.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return a, nil
}

// DeleteMany removes all matches.
func (r *AddressRepository) DeleteMany(ctx context.Context, filter domain.AddressFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("delete addresses: %w", err)
	}
	if filter.ID == "" && filter.OwnerID == "" {
		return 0, fmt.Errorf("delete addresses: filter has no id or owner")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	var n int64
	for _, id := range r.order {
		if filter.Matches(r.byID[id]) {
			delete(r.byID, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return n, nil
}

// OwnerDirectory is an in-memory repository.OwnerDirectory.
type OwnerDirectory struct {
	mu     sync.RWMutex
	owners map[string]struct{}
}

// NewOwnerDirectory creates a directory that knows the given owners.
func NewOwnerDirectory(ownerIDs ...string) *OwnerDirectory {
	d := &OwnerDirectory{owners: make(map[string]struct{}, len(ownerIDs))}
	for _, id := range ownerIDs {
		d.owners[id] = struct{}{}
	}
	return d
}

// Add registers an owner.
func (d *OwnerDirectory) Add(ownerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[ownerID] = struct{}{}
}

// Exists implements repository.OwnerDirectory.
func (d *OwnerDirectory) Exists(_ context.Context, ownerID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.owners[ownerID]
	return ok, nil
}
