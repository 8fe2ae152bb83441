// Package db provides a PostgreSQL-backed settings store.
package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/currency-annotator/internal/storage"
)

// ChangesChannel is the LISTEN/NOTIFY channel carrying changed keys.
const ChangesChannel = "ccx_changes"

const schema = `CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool     *pgxpool.Pool
	watchers storage.Watchers

	listenMu sync.Mutex
	listener *listener
}

var _ storage.Store = (*DB)(nil)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// EnsureSchema creates the kv_entries table if it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create kv_entries: %w", err)
	}
	return nil
}

// Close stops listening for changes and closes the connection pool
func (db *DB) Close() {
	db.stopListening()
	if db.pool != nil {
		db.pool.Close()
	}
}
