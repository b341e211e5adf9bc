package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/crawl-relay/internal/types"
)

// DefaultListLimit and MaxListLimit bound ListMessages.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// MessageStore appends and reads relayed message records.
type MessageStore interface {
	InsertMessage(ctx context.Context, rec types.MessageRecord) error
	ListMessages(ctx context.Context, userID string, limit int) ([]types.MessageRecord, error)
	Close()
}

var (
	_ MessageStore = (*DB)(nil)
	_ MessageStore = (*SQLiteStore)(nil)
)

// Open picks a backend from the URL scheme: postgres:// or postgresql:// use
// PostgreSQL; sqlite:// or a bare path use SQLite.
func Open(ctx context.Context, databaseURL string) (MessageStore, error) {
	switch {
	case databaseURL == "":
		return nil, fmt.Errorf("database URL is empty")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pg, err := Connect(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
