package component

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/releasemerge/internal/database"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
	"github.com/jackc/pgx/v5"
)

const selectValues = `SELECT field_values FROM component_values WHERE id = $1`

// PostgresSource reads published values from the component_values table.
type PostgresSource struct {
	db database.DBTX
}

// NewPostgresSource creates a source querying through db.
func NewPostgresSource(db database.DBTX) *PostgresSource {
	return &PostgresSource{db: db}
}

// Lookup implements Source.
func (s *PostgresSource) Lookup(ctx context.Context, id string) (rf2.Row, bool, error) {
	var fields []string
	err := s.db.QueryRow(ctx, selectValues, id).Scan(&fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return rf2.Row{}, false, nil
	}
	if err != nil {
		return rf2.Row{}, false, fmt.Errorf("lookup component %s: %w", id, err)
	}
	return rf2.NewRow(fields...), true, nil
}

const selectOwner = `SELECT owner FROM component_owners WHERE id = $1`

// PostgresOwners resolves owners from the component_owners table.
type PostgresOwners struct {
	db database.DBTX
}

// NewPostgresOwners creates an owner lookup querying through db.
func NewPostgresOwners(db database.DBTX) *PostgresOwners {
	return &PostgresOwners{db: db}
}

// Owner returns the owner of id, or "" when none is recorded.
func (o *PostgresOwners) Owner(ctx context.Context, id string) (string, error) {
	var owner string
	err := o.db.QueryRow(ctx, selectOwner, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup owner of %s: %w", id, err)
	}
	return owner, nil
}

// NoOwners is the owner lookup used without a database.
type NoOwners struct{}

// Owner always returns "".
func (NoOwners) Owner(context.Context, string) (string, error) { return "", nil }
