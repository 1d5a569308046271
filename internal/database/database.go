// Package database holds the Postgres plumbing shared by the optional
// database-backed collaborators: connection setup, the DBTX abstraction and
// schema bootstrap.
package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PoolOptions configures the connection pool.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect parses url, applies opts, and verifies the connection with a ping.
func Connect(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Name returns the database name from a connection URL, or "" when it cannot
// be parsed.
func Name(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Schema creates the tables used by the database-backed collaborators.
const Schema = `
CREATE TABLE IF NOT EXISTS component_values (
	id           TEXT PRIMARY KEY,
	field_values TEXT[] NOT NULL
);

CREATE TABLE IF NOT EXISTS component_owners (
	id    TEXT PRIMARY KEY,
	owner TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS merge_audit (
	id             UUID PRIMARY KEY,
	run_id         UUID,
	action         TEXT NOT NULL,
	severity       TEXT NOT NULL,
	component_type TEXT NOT NULL,
	component_id   TEXT,
	short_key      TEXT,
	owner          TEXT,
	message        TEXT NOT NULL,
	field_values   TEXT[],
	from_current   INT[],
	from_fix       INT[],
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS merge_audit_run_id_idx ON merge_audit (run_id);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Text converts a string to a nullable text value; "" is NULL.
func Text(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// UUID converts a string to a nullable uuid value; "" and unparseable input
// are NULL.
func UUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// Timestamptz wraps t as a non-null timestamp.
func Timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
