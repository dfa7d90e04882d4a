// Package database provides PostgreSQL-backed persistence for restock alerts
// and read-only access to the catalog collaborator's product links.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps a database connection and provides alert and catalog operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// EnsureSchema creates the restocks table if it does not exist. The products
// table is owned by the catalog collaborator and is not created here.
func (db *DB) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS restocks (
			id            TEXT PRIMARY KEY,
			store         TEXT NOT NULL,
			sku           TEXT NOT NULL,
			product       TEXT NOT NULL DEFAULT 'Unknown',
			price         TEXT NOT NULL DEFAULT '',
			url           TEXT NOT NULL DEFAULT '',
			original_url  TEXT NOT NULL DEFAULT '',
			image         TEXT NOT NULL DEFAULT '',
			"timestamp"   TIMESTAMPTZ NOT NULL,
			source        TEXT NOT NULL DEFAULT 'manual',
			type          TEXT NOT NULL DEFAULT '',
			reactions_yes INTEGER NOT NULL DEFAULT 0,
			reactions_no  INTEGER NOT NULL DEFAULT 0,
			reacted_users TEXT[] NOT NULL DEFAULT '{}'
		)`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure restocks table: %w", err)
	}

	const index = `
		CREATE INDEX IF NOT EXISTS restocks_store_timestamp_idx
		ON restocks (store, "timestamp" DESC)`
	if _, err := db.conn.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to ensure restocks index: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}
