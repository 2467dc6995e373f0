package postgres

import (
	"context"
	"fmt"

	"github.com/cartify/cartify/pkg/database"
)

// OwnerDirectory checks owner ids against the users table the auth service writes.
type OwnerDirectory struct {
	db database.DBTX
}

// NewOwnerDirectory creates a PostgreSQL-backed owner directory.
func NewOwnerDirectory(db database.DBTX) *OwnerDirectory {
	return &OwnerDirectory{db: db}
}

// Exists reports whether a user with ownerID exists.
func (d *OwnerDirectory) Exists(ctx context.Context, ownerID string) (_ bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`

	ctx, end := database.TraceQuery(ctx, "OwnerExists", query)
	defer func() { end(err) }()

	var exists bool
	if err := d.db.QueryRow(ctx, query, ownerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check owner exists: %w", err)
	}
	return exists, nil
}
