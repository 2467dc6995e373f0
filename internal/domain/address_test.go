package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTag(t *testing.T) {
	tests := map[string]Tag{
		"":        TagHome,
		"   ":     TagHome,
		"home":    TagHome,
		"WORK":    TagWork,
		" Other ": TagOther,
		"gym":     TagOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeTag(in), "input %q", in)
	}
}

func TestFlagAndKind(t *testing.T) {
	assert.True(t, FlagCurrent.Valid())
	assert.False(t, Flag("is_admin").Valid())

	assert.Equal(t, FlagDefaultShipping, KindShipping.Flag())
	assert.Equal(t, FlagDefaultBilling, KindBilling.Flag())
	assert.Equal(t, Flag(""), DefaultKind("pickup").Flag())
}

func TestAddressFilter_Matches(t *testing.T) {
	a := &Address{ID: "a1", OwnerID: "u1", IsDefaultBilling: true}

	tests := []struct {
		name   string
		filter AddressFilter
		want   bool
	}{
		{"empty filter", AddressFilter{}, true},
		{"by id", AddressFilter{ID: "a1"}, true},
		{"other id", AddressFilter{ID: "a2"}, false},
		{"by owner", AddressFilter{OwnerID: "u1"}, true},
		{"other owner", AddressFilter{OwnerID: "u2"}, false},
		{"excluded", AddressFilter{OwnerID: "u1", ExcludeID: "a1"}, false},
		{"flag set", AddressFilter{Flag: FlagDefaultBilling}, true},
		{"flag unset", AddressFilter{Flag: FlagDefaultShipping}, false},
		{"id and foreign owner", AddressFilter{ID: "a1", OwnerID: "u2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(a))
		})
	}
}

func TestAddressPatch_Apply(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &Address{ID: "a1", City: "Leeds", Tag: TagHome, IsCurrentAddress: true, CreatedAt: created, UpdatedAt: created}

	city := "York"
	tag := TagWork
	p := FlagPatch(FlagCurrent, false)
	p.City = &city
	p.Tag = &tag

	now := created.Add(time.Hour)
	p.Apply(a, now)

	assert.Equal(t, "York", a.City)
	assert.Equal(t, TagWork, a.Tag)
	assert.False(t, a.IsCurrentAddress)
	assert.Equal(t, created, a.CreatedAt)
	assert.Equal(t, now, a.UpdatedAt)
}

func TestSortForOwner(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	addrs := []Address{
		{ID: "old", CreatedAt: base},
		{ID: "default", IsDefaultShipping: true, CreatedAt: base.Add(-time.Hour)},
		{ID: "new", CreatedAt: base.Add(time.Hour)},
	}

	SortForOwner(addrs)

	got := []string{addrs[0].ID, addrs[1].ID, addrs[2].ID}
	assert.Equal(t, []string{"default", "new", "old"}, got)
}
