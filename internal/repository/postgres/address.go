package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cartify/cartify/internal/domain"
	"github.com/cartify/cartify/pkg/database"
	apperrors "github.com/cartify/cartify/pkg/errors"
)

const addressColumns = `id, owner_id, label, address_line1, address_line2, landmark,
	city, state, postal_code, tag, is_default_shipping, is_default_billing,
	is_current_address, created_at, updated_at`

// AddressRepository implements repository.AddressRepository using PostgreSQL.
type AddressRepository struct {
	db database.DBTX
}

// NewAddressRepository creates a new PostgreSQL-backed address repository.
func NewAddressRepository(db database.DBTX) *AddressRepository {
	return &AddressRepository{db: db}
}

// FindMany returns matching addresses, default-shipping first, then newest first.
func (r *AddressRepository) FindMany(ctx context.Context, filter domain.AddressFilter) (_ []domain.Address, err error) {
	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM addresses
		%s
		ORDER BY is_default_shipping DESC, created_at DESC`, addressColumns, where)

	ctx, end := database.TraceQuery(ctx, "FindManyAddresses", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []domain.Address{}
	for rows.Next() {
		var a domain.Address
		if err := scanAddress(rows, &a); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}

	return addresses, nil
}

// FindOne returns the first address matching filter.
func (r *AddressRepository) FindOne(ctx context.Context, filter domain.AddressFilter) (_ *domain.Address, err error) {
	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM addresses
		%s
		LIMIT 1`, addressColumns, where)

	ctx, end := database.TraceQuery(ctx, "FindOneAddress", query)
	defer func() { end(err) }()

	var a domain.Address
	if err := scanAddress(r.db.QueryRow(ctx, query, args...), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	return &a, nil
}

// InsertOne inserts a new address.
func (r *AddressRepository) InsertOne(ctx context.Context, a *domain.Address) (err error) {
	query := `
		INSERT INTO addresses (
			id, owner_id, label, address_line1, address_line2, landmark,
			city, state, postal_code, tag, is_default_shipping, is_default_billing,
			is_current_address, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	ctx, end := database.TraceQuery(ctx, "InsertAddress", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.OwnerID,
		a.Label,
		a.AddressLine1,
		a.AddressLine2,
		a.Landmark,
		a.City,
		a.State,
		a.PostalCode,
		string(a.Tag),
		a.IsDefaultShipping,
		a.IsDefaultBilling,
		a.IsCurrentAddress,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

// UpdateMany applies patch to every match and returns the number of rows changed.
func (r *AddressRepository) UpdateMany(ctx context.Context, filter domain.AddressFilter, patch domain.AddressPatch) (_ int64, err error) {
	if filter.ID == "" && filter.OwnerID == "" {
		return 0, fmt.Errorf("update addresses: filter has no id or owner")
	}

	set, args := buildSet(patch)
	where, whereArgs, err := buildWhere(filter, len(args)+1)
	if err != nil {
		return 0, fmt.Errorf("update addresses: %w", err)
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf(`UPDATE addresses SET %s %s`, set, where)

	ctx, end := database.TraceQuery(ctx, "UpdateManyAddresses", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update addresses: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateOne applies patch to the address selected by filter.ID and returns
// the updated row.
func (r *AddressRepository) UpdateOne(ctx context.Context, filter domain.AddressFilter, patch domain.AddressPatch) (_ *domain.Address, err error) {
	if filter.ID == "" {
		return nil, fmt.Errorf("update address: filter has no id")
	}

	set, args := buildSet(patch)
	where, whereArgs, err := buildWhere(filter, len(args)+1)
	if err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf(`
		UPDATE addresses SET %s
		%s
		RETURNING %s`, set, where, addressColumns)

	ctx, end := database.TraceQuery(ctx, "UpdateOneAddress", query)
	defer func() { end(err) }()

	var a domain.Address
	if err := scanAddress(r.db.QueryRow(ctx, query, args...), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("update address: %w", err)
	}
	return &a, nil
}

// DeleteOne removes the address selected by filter.ID and returns it.
func (r *AddressRepository) DeleteOne(ctx context.Context, filter domain.AddressFilter) (_ *domain.Address, err error) {
	if filter.ID == "" {
		return nil, fmt.Errorf("delete address: filter has no id")
	}

	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return nil, fmt.Errorf("delete address: %w", err)
	}
	query := fmt.Sprintf(`DELETE FROM addresses %s RETURNING %s`, where, addressColumns)

	ctx, end := database.TraceQuery(ctx, "DeleteAddress", query)
	defer func() { end(err) }()

	var a domain.Address
	if err := scanAddress(r.db.QueryRow(ctx, query, args...), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("delete address: %w", err)
	}
	return &a, nil
}

// DeleteMany removes every match and returns the number of rows removed.
func (r *AddressRepository) DeleteMany(ctx context.Context, filter domain.AddressFilter) (_ int64, err error) {
	if filter.ID == "" && filter.OwnerID == "" {
		return 0, fmt.Errorf("delete addresses: filter has no id or owner")
	}

	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return 0, fmt.Errorf("delete addresses: %w", err)
	}
	query := `DELETE FROM addresses ` + where

	ctx, end := database.TraceQuery(ctx, "DeleteManyAddresses", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete addresses: %w", err)
	}
	return tag.RowsAffected(), nil
}

// buildWhere renders filter as a WHERE clause whose placeholders start at
// $argIndex. An empty filter yields an empty clause.
func buildWhere(filter domain.AddressFilter, argIndex int) (string, []any, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.ID != "" {
		conditions = append(conditions, fmt.Sprintf("id = $%d", argIndex))
		args = append(args, filter.ID)
		argIndex++
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, filter.OwnerID)
		argIndex++
	}
	if filter.ExcludeID != "" {
		conditions = append(conditions, fmt.Sprintf("id <> $%d", argIndex))
		args = append(args, filter.ExcludeID)
	}
	if filter.Flag != "" {
		// Flag values double as column names, so only known flags may be interpolated.
		if !filter.Flag.Valid() {
			return "", nil, fmt.Errorf("unknown address flag %q", filter.Flag)
		}
		conditions = append(conditions, string(filter.Flag)+" = TRUE")
	}

	if len(conditions) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args, nil
}

// buildSet renders the SET list for patch with placeholders from $1.
// updated_at is always refreshed.
func buildSet(p domain.AddressPatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Label != nil {
		add("label", *p.Label)
	}
	if p.AddressLine1 != nil {
		add("address_line1", *p.AddressLine1)
	}
	if p.AddressLine2 != nil {
		add("address_line2", *p.AddressLine2)
	}
	if p.Landmark != nil {
		add("landmark", *p.Landmark)
	}
	if p.City != nil {
		add("city", *p.City)
	}
	if p.State != nil {
		add("state", *p.State)
	}
	if p.PostalCode != nil {
		add("postal_code", *p.PostalCode)
	}
	if p.Tag != nil {
		add("tag", string(*p.Tag))
	}
	if p.IsDefaultShipping != nil {
		add(string(domain.FlagDefaultShipping), *p.IsDefaultShipping)
	}
	if p.IsDefaultBilling != nil {
		add(string(domain.FlagDefaultBilling), *p.IsDefaultBilling)
	}
	if p.IsCurrentAddress != nil {
		add(string(domain.FlagCurrent), *p.IsCurrentAddress)
	}
	sets = append(sets, "updated_at = NOW()")

	return strings.Join(sets, ", "), args
}

func scanAddress(row pgx.Row, a *domain.Address) error {
	var tag string
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Label,
		&a.AddressLine1,
		&a.AddressLine2,
		&a.Landmark,
		&a.City,
		&a.State,
		&a.PostalCode,
		&tag,
		&a.IsDefaultShipping,
		&a.IsDefaultBilling,
		&a.IsCurrentAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	a.Tag = domain.Tag(tag)
	return nil
}
