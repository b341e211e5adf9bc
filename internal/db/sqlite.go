package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/crawl-relay/internal/types"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id        TEXT PRIMARY KEY,
	platform  TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	message   TEXT NOT NULL,
	direction TEXT NOT NULL CHECK (direction IN ('incoming', 'outgoing')),
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_user_ts ON messages (user_id, timestamp DESC);`

// SQLiteStore keeps messages in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at path, ensuring the parent
// directory and schema exist. ":memory:" is accepted for tests.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// InsertMessage appends a message record
func (s *SQLiteStore) InsertMessage(ctx context.Context, rec types.MessageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, platform, user_id, message, direction, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Platform, rec.UserID, rec.Text, rec.Direction, rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent messages for a user, newest first
func (s *SQLiteStore) ListMessages(ctx context.Context, userID string, limit int) ([]types.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, user_id, message, direction, timestamp
		 FROM messages WHERE user_id = ?
		 ORDER BY timestamp DESC LIMIT ?`,
		userID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var records []types.MessageRecord
	for rows.Next() {
		var (
			rec types.MessageRecord
			id  string
			ts  int64
		)
		if err := rows.Scan(&id, &rec.Platform, &rec.UserID, &rec.Text, &rec.Direction, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid message id %q: %w", id, err)
		}
		rec.Timestamp = time.Unix(0, ts).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return records, nil
}
