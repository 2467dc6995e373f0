package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cartify/cartify/internal/domain"
	"github.com/cartify/cartify/internal/lock"
	"github.com/cartify/cartify/internal/repository"
	apperrors "github.com/cartify/cartify/pkg/errors"
)

// EventPublisher receives address lifecycle events. Implemented by event.Producer.
type EventPublisher interface {
	PublishAddressCreated(ctx context.Context, a *domain.Address) error
	PublishAddressUpdated(ctx context.Context, a *domain.Address) error
	PublishAddressDeleted(ctx context.Context, a *domain.Address) error
	PublishDefaultChanged(ctx context.Context, a *domain.Address, kind domain.DefaultKind) error
	PublishCurrentChanged(ctx context.Context, a *domain.Address) error
}

// AddressService manages an owner's saved addresses and keeps at most one
// default-shipping, one default-billing and one current address per owner,
// with the current address always being the default-shipping one.
type AddressService struct {
	repo   repository.AddressRepository
	owners repository.OwnerDirectory
	locker lock.OwnerLocker
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewAddressService creates a new address service. owners and events may be
// nil to skip owner checks and event publishing; a nil locker means no locking.
func NewAddressService(
	repo repository.AddressRepository,
	owners repository.OwnerDirectory,
	locker lock.OwnerLocker,
	events EventPublisher,
	logger *slog.Logger,
) *AddressService {
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &AddressService{
		repo:   repo,
		owners: owners,
		locker: locker,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateAddressInput holds the parameters for creating a new address.
type CreateAddressInput struct {
	Label             string
	AddressLine1      string
	AddressLine2      string
	Landmark          string
	City              string
	State             string
	PostalCode        string
	Tag               string
	IsDefaultShipping bool
	IsDefaultBilling  bool
	IsCurrentAddress  bool
}

// UpdateAddressInput holds the parameters for updating an address. Nil
// fields are left unchanged. A non-empty OwnerID restricts the update to
// addresses of that owner.
type UpdateAddressInput struct {
	OwnerID           string
	Label             *string
	AddressLine1      *string
	AddressLine2      *string
	Landmark          *string
	City              *string
	State             *string
	PostalCode        *string
	Tag               *string
	IsDefaultShipping *bool
	IsDefaultBilling  *bool
	IsCurrentAddress  *bool
}

// CreateAddress validates and stores a new address for ownerID, clearing the
// flags it claims from the owner's other addresses first.
func (s *AddressService) CreateAddress(ctx context.Context, ownerID string, input CreateAddressInput) (_ *domain.Address, err error) {
	defer func() { observe("create", err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if missing := missingRequired(map[string]string{
		"addressLine1": input.AddressLine1,
		"city":         input.City,
		"state":        input.State,
		"postalCode":   input.PostalCode,
	}); missing != "" {
		return nil, apperrors.InvalidInput(missing)
	}
	if err := s.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	unlock, err := s.lockOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	address := &domain.Address{
		ID:                uuid.New().String(),
		OwnerID:           ownerID,
		Label:             strings.TrimSpace(input.Label),
		AddressLine1:      strings.TrimSpace(input.AddressLine1),
		AddressLine2:      strings.TrimSpace(input.AddressLine2),
		Landmark:          strings.TrimSpace(input.Landmark),
		City:              strings.TrimSpace(input.City),
		State:             strings.TrimSpace(input.State),
		PostalCode:        strings.TrimSpace(input.PostalCode),
		Tag:               domain.NormalizeTag(input.Tag),
		IsDefaultShipping: input.IsDefaultShipping,
		IsDefaultBilling:  input.IsDefaultBilling,
		IsCurrentAddress:  input.IsCurrentAddress,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if address.IsCurrentAddress {
		address.IsDefaultShipping = true
	}
	if address.IsDefaultShipping {
		if err := s.clearShipping(ctx, ownerID, ""); err != nil {
			return nil, err
		}
	}
	if address.IsDefaultBilling {
		if err := s.clearFlag(ctx, ownerID, domain.FlagDefaultBilling, ""); err != nil {
			return nil, err
		}
	}

	if err := s.repo.InsertOne(ctx, address); err != nil {
		return nil, storageError("create address", err)
	}

	s.logger.InfoContext(ctx, "address created",
		slog.String("owner_id", ownerID),
		slog.String("address_id", address.ID),
	)
	s.publish(ctx, "address.created", func() error { return s.events.PublishAddressCreated(ctx, address) })

	return address, nil
}

// UpdateAddress merges input into the address with addressID.
func (s *AddressService) UpdateAddress(ctx context.Context, addressID string, input UpdateAddressInput) (_ *domain.Address, err error) {
	defer func() { observe("update", err) }()

	target, err := s.findAddress(ctx, input.OwnerID, addressID)
	if err != nil {
		return nil, err
	}

	provided := map[string]string{}
	for name, v := range map[string]*string{
		"addressLine1": input.AddressLine1,
		"city":         input.City,
		"state":        input.State,
		"postalCode":   input.PostalCode,
	} {
		if v != nil {
			provided[name] = *v
		}
	}
	if missing := missingRequired(provided); missing != "" {
		return nil, apperrors.InvalidInput(missing)
	}

	ownerID := target.OwnerID
	unlock, err := s.lockOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	patch := domain.AddressPatch{
		Label:             trimmed(input.Label),
		AddressLine1:      trimmed(input.AddressLine1),
		AddressLine2:      trimmed(input.AddressLine2),
		Landmark:          trimmed(input.Landmark),
		City:              trimmed(input.City),
		State:             trimmed(input.State),
		PostalCode:        trimmed(input.PostalCode),
		IsDefaultShipping: input.IsDefaultShipping,
		IsDefaultBilling:  input.IsDefaultBilling,
		IsCurrentAddress:  input.IsCurrentAddress,
	}
	if input.Tag != nil {
		tag := domain.NormalizeTag(*input.Tag)
		patch.Tag = &tag
	}

	if isTrue(patch.IsCurrentAddress) {
		patch.SetFlag(domain.FlagDefaultShipping, true)
	}
	if isTrue(patch.IsDefaultShipping) {
		if err := s.clearShipping(ctx, ownerID, addressID); err != nil {
			return nil, err
		}
	}
	if isTrue(patch.IsDefaultBilling) {
		if err := s.clearFlag(ctx, ownerID, domain.FlagDefaultBilling, addressID); err != nil {
			return nil, err
		}
	}
	// An address that stops being default-shipping cannot stay current.
	if patch.IsDefaultShipping != nil && !*patch.IsDefaultShipping && patch.IsCurrentAddress == nil {
		patch.SetFlag(domain.FlagCurrent, false)
	}

	updated, err := s.repo.UpdateOne(ctx, domain.AddressFilter{ID: addressID, OwnerID: ownerID}, patch)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("address", addressID)
		}
		return nil, storageError("update address", err)
	}

	s.logger.InfoContext(ctx, "address updated",
		slog.String("owner_id", ownerID),
		slog.String("address_id", addressID),
	)
	s.publish(ctx, "address.updated", func() error { return s.events.PublishAddressUpdated(ctx, updated) })

	return updated, nil
}

// DeleteAddress removes an address. A non-empty ownerID restricts the
// delete to that owner's addresses. Remaining addresses keep their flags.
func (s *AddressService) DeleteAddress(ctx context.Context, ownerID, addressID string) (err error) {
	defer func() { observe("delete", err) }()

	if ownerID != "" {
		unlock, err := s.lockOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		defer unlock()
	}

	deleted, err := s.repo.DeleteOne(ctx, domain.AddressFilter{ID: addressID, OwnerID: ownerID})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("address", addressID)
		}
		return storageError("delete address", err)
	}

	s.logger.InfoContext(ctx, "address deleted",
		slog.String("owner_id", deleted.OwnerID),
		slog.String("address_id", addressID),
	)
	s.publish(ctx, "address.deleted", func() error { return s.events.PublishAddressDeleted(ctx, deleted) })

	return nil
}

// PurgeOwnerAddresses removes every address of ownerID, for example after
// the owner account was deleted. It returns how many were removed.
func (s *AddressService) PurgeOwnerAddresses(ctx context.Context, ownerID string) (_ int64, err error) {
	defer func() { observe("purge", err) }()

	if err := requireOwner(ownerID); err != nil {
		return 0, err
	}

	unlock, err := s.lockOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	addresses, err := s.repo.FindMany(ctx, domain.AddressFilter{OwnerID: ownerID})
	if err != nil {
		return 0, storageError("list addresses", err)
	}
	if len(addresses) == 0 {
		return 0, nil
	}

	n, err := s.repo.DeleteMany(ctx, domain.AddressFilter{OwnerID: ownerID})
	if err != nil {
		return 0, storageError("delete owner addresses", err)
	}

	s.logger.InfoContext(ctx, "owner addresses purged",
		slog.String("owner_id", ownerID),
		slog.Int64("count", n),
	)
	for i := range addresses {
		a := &addresses[i]
		s.publish(ctx, "address.deleted", func() error { return s.events.PublishAddressDeleted(ctx, a) })
	}

	return n, nil
}

// SetDefaultAddress makes addressID the owner's default for kind. Choosing a
// new shipping default also leaves the owner with no current address.
func (s *AddressService) SetDefaultAddress(ctx context.Context, ownerID, addressID string, kind domain.DefaultKind) (_ *domain.Address, err error) {
	defer func() { observe("set_default", err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	flag := kind.Flag()
	if flag == "" {
		return nil, apperrors.InvalidInput(fmt.Sprintf("kind must be %q or %q", domain.KindShipping, domain.KindBilling))
	}

	unlock, err := s.lockOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.findAddress(ctx, ownerID, addressID); err != nil {
		return nil, err
	}

	if kind == domain.KindShipping {
		err = s.clearShipping(ctx, ownerID, "")
	} else {
		err = s.clearFlag(ctx, ownerID, flag, "")
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateOne(ctx, domain.AddressFilter{ID: addressID, OwnerID: ownerID}, domain.FlagPatch(flag, true))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("address", addressID)
		}
		return nil, storageError("set default address", err)
	}

	s.logger.InfoContext(ctx, "default address changed",
		slog.String("owner_id", ownerID),
		slog.String("address_id", addressID),
		slog.String("kind", string(kind)),
	)
	s.publish(ctx, "address.default_changed", func() error { return s.events.PublishDefaultChanged(ctx, updated, kind) })

	return updated, nil
}

// SetCurrentAddress makes addressID the owner's current and default-shipping
// address. The owner's flags are cleared first; when addressID does not
// belong to ownerID nothing is set and (nil, nil) is returned.
func (s *AddressService) SetCurrentAddress(ctx context.Context, ownerID, addressID string) (_ *domain.Address, err error) {
	defer func() { observe("set_current", err) }()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	unlock, err := s.lockOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.clearShipping(ctx, ownerID, ""); err != nil {
		return nil, err
	}

	var patch domain.AddressPatch
	patch.SetFlag(domain.FlagCurrent, true)
	patch.SetFlag(domain.FlagDefaultShipping, true)

	updated, err := s.repo.UpdateOne(ctx, domain.AddressFilter{ID: addressID, OwnerID: ownerID}, patch)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.DebugContext(ctx, "current address target not owned by caller",
				slog.String("owner_id", ownerID),
				slog.String("address_id", addressID),
			)
			return nil, nil
		}
		return nil, storageError("set current address", err)
	}

	s.logger.InfoContext(ctx, "current address changed",
		slog.String("owner_id", ownerID),
		slog.String("address_id", addressID),
	)
	s.publish(ctx, "address.current_changed", func() error { return s.events.PublishCurrentChanged(ctx, updated) })

	return updated, nil
}

// ListAddressesForOwner returns the owner's addresses, default-shipping
// first, then newest first.
func (s *AddressService) ListAddressesForOwner(ctx context.Context, ownerID string) ([]domain.Address, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	addresses, err := s.repo.FindMany(ctx, domain.AddressFilter{OwnerID: ownerID})
	if err != nil {
		return nil, storageError("list addresses", err)
	}
	return addresses, nil
}

// GetAddress returns one of the owner's addresses.
func (s *AddressService) GetAddress(ctx context.Context, ownerID, addressID string) (*domain.Address, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return s.findAddress(ctx, ownerID, addressID)
}

// clearFlag sets flag to false on every address of ownerID except exceptID.
func (s *AddressService) clearFlag(ctx context.Context, ownerID string, flag domain.Flag, exceptID string) error {
	n, err := s.repo.UpdateMany(ctx,
		domain.AddressFilter{OwnerID: ownerID, Flag: flag, ExcludeID: exceptID},
		domain.FlagPatch(flag, false),
	)
	if err != nil {
		return storageError("clear "+string(flag), err)
	}
	if n > 0 {
		flagsCleared.WithLabelValues(string(flag)).Add(float64(n))
	}
	return nil
}

// clearShipping takes default-shipping away from the owner's other
// addresses. Current status goes first since it requires default-shipping.
func (s *AddressService) clearShipping(ctx context.Context, ownerID, exceptID string) error {
	if err := s.clearFlag(ctx, ownerID, domain.FlagCurrent, exceptID); err != nil {
		return err
	}
	return s.clearFlag(ctx, ownerID, domain.FlagDefaultShipping, exceptID)
}

func (s *AddressService) findAddress(ctx context.Context, ownerID, addressID string) (*domain.Address, error) {
	a, err := s.repo.FindOne(ctx, domain.AddressFilter{ID: addressID, OwnerID: ownerID})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("address", addressID)
		}
		return nil, storageError("get address", err)
	}
	return a, nil
}

func (s *AddressService) checkOwner(ctx context.Context, ownerID string) error {
	if s.owners == nil {
		return nil
	}
	ok, err := s.owners.Exists(ctx, ownerID)
	if err != nil {
		return storageError("check owner", err)
	}
	if !ok {
		return apperrors.NotFound("owner", ownerID)
	}
	return nil
}

func (s *AddressService) lockOwner(ctx context.Context, ownerID string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Storage("acquire owner lock", err)
	}
	return unlock, nil
}

// publish runs fn unless events are disabled. Failures are logged only.
func (s *AddressService) publish(ctx context.Context, name string, fn func() error) {
	if s.events == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish "+name+" event",
			slog.String("error", err.Error()),
		)
	}
}

// storageError converts a repository failure into a StorageError unless it
// already carries an application error.
func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return apperrors.InvalidInput("owner id is required")
	}
	return nil
}

func storageError(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Storage(op, err)
}

// missingRequired returns a validation message naming every blank field, or "".
func missingRequired(fields map[string]string) string {
	var missing []string
	for _, name := range []string{"addressLine1", "city", "state", "postalCode"} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return ""
	}
	return strings.Join(missing, ", ") + " must not be empty"
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
