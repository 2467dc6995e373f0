package domain

import (
	"sort"
	"strings"
	"time"
)

// Tag classifies an address for display.
type Tag string

const (
	TagHome  Tag = "home"
	TagWork  Tag = "work"
	TagOther Tag = "other"
)

// NormalizeTag maps free-form input onto a Tag. Empty input is home, known
// values match case-insensitively, anything else is other.
func NormalizeTag(raw string) Tag {
	switch t := Tag(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return TagHome
	case TagHome, TagWork, TagOther:
		return t
	default:
		return TagOther
	}
}

// Flag names one of the exclusive per-owner address flags. The value is the
// column name in the addresses table.
type Flag string

const (
	FlagDefaultShipping Flag = "is_default_shipping"
	FlagDefaultBilling  Flag = "is_default_billing"
	FlagCurrent         Flag = "is_current_address"
)

// Valid reports whether f is one of the known flags.
func (f Flag) Valid() bool {
	switch f {
	case FlagDefaultShipping, FlagDefaultBilling, FlagCurrent:
		return true
	}
	return false
}

// DefaultKind selects which default SetDefaultAddress changes.
type DefaultKind string

const (
	KindShipping DefaultKind = "shipping"
	KindBilling  DefaultKind = "billing"
)

// Flag returns the flag a default kind controls, or "" for an unknown kind.
func (k DefaultKind) Flag() Flag {
	switch k {
	case KindShipping:
		return FlagDefaultShipping
	case KindBilling:
		return FlagDefaultBilling
	}
	return ""
}

// Address is a saved postal address belonging to one owner.
type Address struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"ownerId"`
	Label             string    `json:"label"`
	AddressLine1      string    `json:"addressLine1"`
	AddressLine2      string    `json:"addressLine2"`
	Landmark          string    `json:"landmark"`
	City              string    `json:"city"`
	State             string    `json:"state"`
	PostalCode        string    `json:"postalCode"`
	Tag               Tag       `json:"tag"`
	IsDefaultShipping bool      `json:"isDefaultShipping"`
	IsDefaultBilling  bool      `json:"isDefaultBilling"`
	IsCurrentAddress  bool      `json:"isCurrentAddress"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// HasFlag reports whether flag f is set on a.
func (a *Address) HasFlag(f Flag) bool {
	switch f {
	case FlagDefaultShipping:
		return a.IsDefaultShipping
	case FlagDefaultBilling:
		return a.IsDefaultBilling
	case FlagCurrent:
		return a.IsCurrentAddress
	}
	return false
}

// SortForOwner orders addresses default-shipping first, then newest first.
func SortForOwner(addrs []Address) {
	sort.SliceStable(addrs, func(i, j int) bool {
		if addrs[i].IsDefaultShipping != addrs[j].IsDefaultShipping {
			return addrs[i].IsDefaultShipping
		}
		return addrs[i].CreatedAt.After(addrs[j].CreatedAt)
	})
}

// AddressFilter selects addresses. Zero-valued fields do not constrain.
type AddressFilter struct {
	ID        string
	OwnerID   string
	ExcludeID string
	// Flag restricts the match to addresses where that flag is true.
	Flag Flag
}

// Matches reports whether a satisfies the filter.
func (f AddressFilter) Matches(a *Address) bool {
	if f.ID != "" && a.ID != f.ID {
		return false
	}
	if f.OwnerID != "" && a.OwnerID != f.OwnerID {
		return false
	}
	if f.ExcludeID != "" && a.ID == f.ExcludeID {
		return false
	}
	if f.Flag != "" && !a.HasFlag(f.Flag) {
		return false
	}
	return true
}

// AddressPatch lists field changes. Nil fields are left unchanged.
type AddressPatch struct {
	Label             *string
	AddressLine1      *string
	AddressLine2      *string
	Landmark          *string
	City              *string
	State             *string
	PostalCode        *string
	Tag               *Tag
	IsDefaultShipping *bool
	IsDefaultBilling  *bool
	IsCurrentAddress  *bool
}

// FlagPatch sets a single flag to v.
func FlagPatch(f Flag, v bool) AddressPatch {
	var p AddressPatch
	p.SetFlag(f, v)
	return p
}

// SetFlag records a change of flag f to v.
func (p *AddressPatch) SetFlag(f Flag, v bool) {
	switch f {
	case FlagDefaultShipping:
		p.IsDefaultShipping = &v
	case FlagDefaultBilling:
		p.IsDefaultBilling = &v
	case FlagCurrent:
		p.IsCurrentAddress = &v
	}
}

// Apply writes the patch onto a and stamps UpdatedAt with now.
func (p AddressPatch) Apply(a *Address, now time.Time) {
	setString(&a.Label, p.Label)
	setString(&a.AddressLine1, p.AddressLine1)
	setString(&a.AddressLine2, p.AddressLine2)
	setString(&a.Landmark, p.Landmark)
	setString(&a.City, p.City)
	setString(&a.State, p.State)
	setString(&a.PostalCode, p.PostalCode)
	if p.Tag != nil {
		a.Tag = *p.Tag
	}
	setBool(&a.IsDefaultShipping, p.IsDefaultShipping)
	setBool(&a.IsDefaultBilling, p.IsDefaultBilling)
	setBool(&a.IsCurrentAddress, p.IsCurrentAddress)
	a.UpdatedAt = now
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
