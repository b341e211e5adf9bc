// Package db provides persistence for relayed chat messages.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/crawl-relay/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id        UUID PRIMARY KEY,
	platform  TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	message   TEXT NOT NULL,
	direction TEXT NOT NULL CHECK (direction IN ('incoming', 'outgoing')),
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_messages_user_ts ON messages (user_id, timestamp DESC);`

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

// EnsureSchema creates the messages table if it does not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// InsertMessage appends a message record
func (db *DB) InsertMessage(ctx context.Context, rec types.MessageRecord) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO messages (id, platform, user_id, message, direction, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Platform, rec.UserID, rec.Text, rec.Direction, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent messages for a user, newest first
func (db *DB) ListMessages(ctx context.Context, userID string, limit int) ([]types.MessageRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, platform, user_id, message, direction, timestamp
		 FROM messages WHERE user_id = $1
		 ORDER BY timestamp DESC LIMIT $2`,
		userID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var records []types.MessageRecord
	for rows.Next() {
		var rec types.MessageRecord
		if err := rows.Scan(&rec.ID, &rec.Platform, &rec.UserID, &rec.Text, &rec.Direction, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return records, nil
}
