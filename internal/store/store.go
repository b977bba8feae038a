// Package store provides the Postgres persistence layer for the tracking
// domain: products, variants, append-only price/stock history, check runs,
// tracked items, notifications, and scheduler logs.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lattani/trackwright/dbopen"
)

// Execer is the subset of *sql.DB/*sql.Tx every store method calls
// through, letting a Store wrap either a pooled connection or a single
// transaction transparently.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the tracking domain's database handle.
type Store struct {
	DB Execer
	// pool is non-nil only on the top-level Store returned by Open; a
	// tx-scoped Store built by WithTx leaves it nil so Close/WithTx can't be
	// called on a Store that doesn't own the pool.
	pool *sql.DB
}

// Open opens a Postgres database at dsn and applies the domain schema.
// The caller must blank-import the lib/pq driver before calling Open:
//
//	import _ "github.com/lib/pq"
func Open(dsn string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(dsn, allOpts...)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an already-open *sql.DB (e.g. one built by tests via
// dbopen.OpenTestDB) as a top-level Store capable of Close and WithTx.
func New(db *sql.DB) *Store {
	return &Store{DB: db, pool: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Pool returns the underlying *sql.DB. It exists for callers that need a
// connection of their own outside the Execer abstraction above — namely
// internal/lock, which must check out a single session-scoped connection
// for the lifetime of a pg_advisory_lock. It returns nil on a tx-scoped
// Store built by WithTx.
func (s *Store) Pool() *sql.DB {
	return s.pool
}

// WithTx runs fn against a Store scoped to a single transaction, following
// dbopen.RunTx's retry-on-transient-error idiom. Every store method called
// on the Store passed to fn participates in the same transaction, so a
// multi-step reconcile either commits in full or leaves no trace.
func (s *Store) WithTx(ctx context.Context, fn func(*Store) error) error {
	if s.pool == nil {
		return fmt.Errorf("store: WithTx called on a transaction-scoped Store")
	}
	return dbopen.RunTx(ctx, s.pool, func(tx *sql.Tx) error {
		return fn(&Store{DB: tx})
	})
}
