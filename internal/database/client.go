// Package database provides the PostgreSQL store for the session host: the POI
// catalog, claimed territories, reward ledgers and the OwnTracks location log
// used for replays.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Schema creates the tables owned by the session host
const Schema = `
CREATE TABLE IF NOT EXISTS pois (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS territories (
	id                 UUID PRIMARY KEY,
	session_id         UUID NOT NULL,
	player_id          TEXT NOT NULL,
	centroid_latitude  DOUBLE PRECISION NOT NULL,
	centroid_longitude DOUBLE PRECISION NOT NULL,
	area_m2            DOUBLE PRECISION NOT NULL,
	area_method        TEXT NOT NULL,
	vertex_count       INTEGER NOT NULL,
	path_length_m      DOUBLE PRECISION NOT NULL,
	boundary           JSONB NOT NULL,
	started_at         TIMESTAMPTZ NOT NULL,
	closed_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS territories_player_closed_idx
	ON territories (player_id, closed_at DESC);

CREATE TABLE IF NOT EXISTS reward_ledgers (
	player_id         TEXT PRIMARY KEY,
	total_distance_m  DOUBLE PRECISION NOT NULL DEFAULT 0,
	unlocked_tier_ids BIGINT[] NOT NULL DEFAULT '{}',
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Client wraps a PostgreSQL database connection
type Client struct {
	db *sql.DB
}

// NewClient creates a new database client with connection pooling
func NewClient(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (also failed to close: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// EnsureSchema applies Schema. Every statement is idempotent.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// HealthCheck verifies database connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Stats returns connection pool statistics
func (c *Client) Stats() sql.DBStats {
	return c.db.Stats()
}
