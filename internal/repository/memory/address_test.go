package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartify/cartify/internal/domain"
	"github.com/cartify/cartify/internal/repository"
	apperrors "github.com/cartify/cartify/pkg/errors"
)

var (
	_ repository.AddressRepository = (*AddressRepository)(nil)
	_ repository.OwnerDirectory    = (*OwnerDirectory)(nil)
)

func seed(t *testing.T, r *AddressRepository, addrs ...domain.Address) {
	t.Helper()
	for i := range addrs {
		require.NoError(t, r.InsertOne(context.Background(), &addrs[i]))
	}
}

func ids(addrs []domain.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.ID
	}
	return out
}

func TestAddressRepository_FindMany(t *testing.T) {
	r := NewAddressRepository()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seed(t, r,
		domain.Address{ID: "a1", OwnerID: "u1", CreatedAt: base},
		domain.Address{ID: "a2", OwnerID: "u1", CreatedAt: base.Add(time.Minute), IsDefaultBilling: true},
		domain.Address{ID: "a3", OwnerID: "u1", CreatedAt: base.Add(-time.Minute), IsDefaultShipping: true},
		domain.Address{ID: "b1", OwnerID: "u2", CreatedAt: base},
	)
	ctx := context.Background()

	got, err := r.FindMany(ctx, domain.AddressFilter{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a2", "a1"}, ids(got))

	got, err = r.FindMany(ctx, domain.AddressFilter{OwnerID: "u1", Flag: domain.FlagDefaultBilling})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, ids(got))

	got, err = r.FindMany(ctx, domain.AddressFilter{OwnerID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAddressRepository_ReturnsCopies(t *testing.T) {
	r := NewAddressRepository()
	seed(t, r, domain.Address{ID: "a1", OwnerID: "u1", City: "Leeds"})

	got, err := r.FindOne(context.Background(), domain.AddressFilter{ID: "a1"})
	require.NoError(t, err)
	got.City = "mutated"

	again, err := r.FindOne(context.Background(), domain.AddressFilter{ID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "Leeds", again.City)
}

func TestAddressRepository_FindOneNotFound(t *testing.T) {
	r := NewAddressRepository()
	seed(t, r, domain.Address{ID: "a1", OwnerID: "u1"})

	_, err := r.FindOne(context.Background(), domain.AddressFilter{ID: "a1", OwnerID: "u2"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddressRepository_InsertDuplicate(t *testing.T) {
	r := NewAddressRepository()
	seed(t, r, domain.Address{ID: "a1"})

	err := r.InsertOne(context.Background(), &domain.Address{ID: "a1"})
	assert.ErrorContains(t, err, "duplicate id")
}

func TestAddressRepository_UpdateMany(t *testing.T) {
	r := NewAddressRepository()
	fixed := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	seed(t, r,
		domain.Address{ID: "a1", OwnerID: "u1", IsCurrentAddress: true},
		domain.Address{ID: "a2", OwnerID: "u1", IsCurrentAddress: true},
		domain.Address{ID: "a3", OwnerID: "u1"},
		domain.Address{ID: "b1", OwnerID: "u2", IsCurrentAddress: true},
	)
	ctx := context.Background()

	n, err := r.UpdateMany(ctx,
		domain.AddressFilter{OwnerID: "u1", Flag: domain.FlagCurrent, ExcludeID: "a2"},
		domain.FlagPatch(domain.FlagCurrent, false))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a1, _ := r.FindOne(ctx, domain.AddressFilter{ID: "a1"})
	a2, _ := r.FindOne(ctx, domain.AddressFilter{ID: "a2"})
	b1, _ := r.FindOne(ctx, domain.AddressFilter{ID: "b1"})
	assert.False(t, a1.IsCurrentAddress)
	assert.Equal(t, fixed, a1.UpdatedAt)
	assert.True(t, a2.IsCurrentAddress)
	assert.True(t, b1.IsCurrentAddress)

	_, err = r.UpdateMany(ctx, domain.AddressFilter{Flag: domain.FlagCurrent}, domain.FlagPatch(domain.FlagCurrent, false))
	assert.ErrorContains(t, err, "filter has no id or owner")
}

func TestAddressRepository_UpdateOne(t *testing.T) {
	r := NewAddressRepository()
	seed(t, r, domain.Address{ID: "a1", OwnerID: "u1"})
	ctx := context.Background()

	patch := domain.FlagPatch(domain.FlagDefaultShipping, true)
	updated, err := r.UpdateOne(ctx, domain.AddressFilter{ID: "a1", OwnerID: "u1"}, patch)
	require.NoError(t, err)
	assert.True(t, updated.IsDefaultShipping)

	_, err = r.UpdateOne(ctx, domain.AddressFilter{ID: "a1", OwnerID: "u2"}, patch)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.UpdateOne(ctx, domain.AddressFilter{ID: "missing"}, patch)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.UpdateOne(ctx, domain.AddressFilter{OwnerID: "u1"}, patch)
	assert.ErrorContains(t, err, "filter has no id")
}

func TestAddressRepository_DeleteOne(t *testing.T) {
	r := NewAddressRepository()
	seed(t, r, domain.Address{ID: "a1", OwnerID: "u1"}, domain.Address{ID: "a2", OwnerID: "u1"})
	ctx := context.Background()

	_, err := r.DeleteOne(ctx, domain.AddressFilter{ID: "a1", OwnerID: "u2"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "owner filter keeps other owners' addresses")

	deleted, err := r.DeleteOne(ctx, domain.AddressFilter{ID: "a1", OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "a1", deleted.ID)

	_, err = r.DeleteOne(ctx, domain.AddressFilter{ID: "a1"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.DeleteOne(ctx, domain.AddressFilter{OwnerID: "u1"})
	assert.ErrorContains(t, err, "filter has no id")

	left, err := r.FindMany(ctx, domain.AddressFilter{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, ids(left))
}

func TestAddressRepository_DeleteMany(t *testing.T) {
	r := NewAddressRepository()
	seed(t, r,
		domain.Address{ID: "a1", OwnerID: "u1"},
		domain.Address{ID: "b1", OwnerID: "u2"},
		domain.Address{ID: "a2", OwnerID: "u1"},
	)
	ctx := context.Background()

	n, err := r.DeleteMany(ctx, domain.AddressFilter{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := r.FindMany(ctx, domain.AddressFilter{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, left)

	others, err := r.FindMany(ctx, domain.AddressFilter{OwnerID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, ids(others))

	_, err = r.DeleteMany(ctx, domain.AddressFilter{})
	assert.ErrorContains(t, err, "filter has no id or owner")
}

func TestAddressRepository_CanceledContext(t *testing.T) {
	r := NewAddressRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.FindMany(ctx, domain.AddressFilter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, r.InsertOne(ctx, &domain.Address{ID: "x"}), context.Canceled)
}

func TestOwnerDirectory(t *testing.T) {
	d := NewOwnerDirectory("u1")
	d.Add("u2")

	for owner, want := range map[string]bool{"u1": true, "u2": true, "u3": false} {
		ok, err := d.Exists(context.Background(), owner)
		require.NoError(t, err)
		assert.Equal(t, want, ok, owner)
	}
}
