// Package dbopen provides a single function to open a Postgres database with
// production-safe pool settings and session variables applied after connect.
//
// Default session settings:
//
//	statement_timeout = 30000   (ms)
//	lock_timeout       = 5000   (ms; overridden per-call by the locking helper)
//
// Usage:
//
//	import _ "github.com/lib/pq"
//	db, err := dbopen.Open(os.Getenv("DATABASE_URL"))
//
// In tests:
//
//	db := dbopen.OpenTestDB(t, "my_package_test")
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"
)

type config struct {
	driver            string
	maxOpenConns      int
	maxIdleConns      int
	connMaxLifetime   time.Duration
	statementTimeout  int
	lockTimeout       int
	schemas           []string
	schemaFiles       []string
	ping              bool
}

func defaults() config {
	return config{
		driver:           "postgres",
		maxOpenConns:     20,
		maxIdleConns:     5,
		connMaxLifetime:  30 * time.Minute,
		statementTimeout: 30_000,
		lockTimeout:      5_000,
		ping:             true,
	}
}

// Option customises Open behaviour.
type Option func(*config)

// WithDriver sets the database/sql driver name. Default: "postgres".
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithMaxOpenConns bounds the pool size. Default: 20.
func WithMaxOpenConns(n int) Option { return func(c *config) { c.maxOpenConns = n } }

// WithMaxIdleConns bounds idle connections retained in the pool. Default: 5.
func WithMaxIdleConns(n int) Option { return func(c *config) { c.maxIdleConns = n } }

// WithConnMaxLifetime bounds how long a pooled connection is reused. Default: 30m.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(c *config) { c.connMaxLifetime = d }
}

// WithStatementTimeout sets the session's statement_timeout in milliseconds.
// Default: 30000.
func WithStatementTimeout(ms int) Option { return func(c *config) { c.statementTimeout = ms } }

// WithLockTimeout sets the session's lock_timeout in milliseconds. Default: 5000.
func WithLockTimeout(ms int) Option { return func(c *config) { c.lockTimeout = ms } }

// WithSchema queues inline SQL to execute after the pool is configured.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// WithSchemaFile queues an .sql file to read and execute after the pool is
// configured.
func WithSchemaFile(path string) Option {
	return func(c *config) { c.schemaFiles = append(c.schemaFiles, path) }
}

// WithoutPing skips the db.Ping() verification after opening.
func WithoutPing() Option { return func(c *config) { c.ping = false } }

// Open opens a Postgres database at dsn with production-safe pool settings.
// The caller must blank-import the driver before calling Open:
//
//	import _ "github.com/lib/pq"
func Open(dsn string, opts ...Option) (*sql.DB, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	db, err := sql.Open(cfg.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	if cfg.ping {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: ping: %w", err)
		}
	}

	if err := applySessionDefaults(db, &cfg); err != nil {
		db.Close()
		return nil, err
	}

	if err := execSchemas(db, &cfg); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// execSchemas runs any queued schema files/strings against db, in the order
// they were registered. Factored out so OpenTestDB can defer schema
// execution until after it has switched search_path to the test's disposable
// schema.
func execSchemas(db *sql.DB, cfg *config) error {
	for _, f := range cfg.schemaFiles {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("dbopen: read schema file %s: %w", f, err)
		}
		if _, err := db.Exec(string(data)); err != nil {
			return fmt.Errorf("dbopen: exec schema file %s: %w", f, err)
		}
	}

	for _, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}

	return nil
}

// OpenTestDB opens a Postgres database for testing, provisioning a disposable
// schema (dropped via t.Cleanup) so tests never collide with each other or
// with a development database. The connection string comes from
// TEST_DATABASE_URL; tests call t.Skip when it's unset, since Postgres has no
// in-memory mode to fall back on.
func OpenTestDB(t testing.TB, schemaName string, opts ...Option) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres-backed test")
	}

	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	// Open with schema execution held back: any WithSchema/WithSchemaFile
	// queued by the caller must run against the disposable test schema, not
	// whatever search_path the fresh connection starts with.
	bare := cfg
	bare.schemas = nil
	bare.schemaFiles = nil

	db, err := sql.Open(bare.driver, dsn)
	if err != nil {
		t.Fatalf("dbopen.OpenTestDB: open: %v", err)
	}
	db.SetMaxOpenConns(bare.maxOpenConns)
	db.SetMaxIdleConns(bare.maxIdleConns)
	db.SetConnMaxLifetime(bare.connMaxLifetime)

	if bare.ping {
		if err := db.Ping(); err != nil {
			db.Close()
			t.Fatalf("dbopen.OpenTestDB: ping: %v", err)
		}
	}
	if err := applySessionDefaults(db, &bare); err != nil {
		db.Close()
		t.Fatalf("dbopen.OpenTestDB: %v", err)
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)); err != nil {
		db.Close()
		t.Fatalf("dbopen.OpenTestDB: create schema: %v", err)
	}
	if _, err := db.Exec(fmt.Sprintf("SET search_path TO %s", schemaName)); err != nil {
		db.Close()
		t.Fatalf("dbopen.OpenTestDB: set search_path: %v", err)
	}

	if err := execSchemas(db, &cfg); err != nil {
		db.Close()
		t.Fatalf("dbopen.OpenTestDB: %v", err)
	}

	t.Cleanup(func() {
		db.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
		db.Close()
	})
	return db
}

// applySessionDefaults sets timeouts on whichever connection db.Exec happens
// to pick from the pool at startup. It's a sanity check, not a pool-wide
// guarantee — callers that need every pooled connection to carry these
// settings should bake them into the DSN instead (lib/pq honours
// "options=-c statement_timeout=30000" query parameters).
func applySessionDefaults(db *sql.DB, cfg *config) error {
	stmts := []string{
		fmt.Sprintf("SET statement_timeout = %d", cfg.statementTimeout),
		fmt.Sprintf("SET lock_timeout = %d", cfg.lockTimeout),
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("dbopen: %s: %w", s, err)
		}
	}
	return nil
}
