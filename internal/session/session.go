// Package session tracks lightweight per-conversation activity state.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults bound the store when no explicit limits are configured.
const (
	DefaultMaxEntries = 10000
	DefaultTTL        = 24 * time.Hour
)

// Session is the activity state of one conversation.
// A chat with no Session is NEW; once stored it is ACTIVE.
type Session struct {
	ChatID       int64     `json:"chat_id"`
	LastActive   time.Time `json:"last_active"`
	MessageCount int       `json:"message_count"`
}

// Store maps conversation identifiers to sessions.
type Store interface {
	// Get returns the session for chatID without touching it.
	Get(chatID int64) (Session, bool)
	// Upsert records one message for chatID at now, creating the session if needed,
	// and returns the updated state.
	Upsert(chatID int64, now time.Time) Session
	// Evict removes chatID and reports whether it was present.
	Evict(chatID int64) bool
	// Len returns the number of tracked sessions.
	Len() int
}

// Options configures an LRUStore.
type Options struct {
	MaxEntries int           // least-recently-active sessions are evicted beyond this; 0 means unbounded
	TTL        time.Duration // sessions idle longer than this expire; 0 means never
	Logger     *slog.Logger
}

// LRUStore is a Store bounded by size and idle time.
// Upsert holds a lock across read and write, so concurrent messages for the
// same chat never lose an increment.
type LRUStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[int64, Session]
}

// NewLRUStore creates a bounded session store. A positive TTL starts a
// background expiry goroutine that lives as long as the process, so create
// one store per process.
func NewLRUStore(opts Options) *LRUStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onEvict := func(chatID int64, s Session) {
		logger.Debug("session evicted", "chat_id", chatID, "message_count", s.MessageCount, "last_active", s.LastActive)
	}
	return &LRUStore{
		cache: expirable.NewLRU[int64, Session](opts.MaxEntries, onEvict, opts.TTL),
	}
}

// Get implements Store.
func (s *LRUStore) Get(chatID int64) (Session, bool) {
	return s.cache.Peek(chatID)
}

// Upsert implements Store.
func (s *LRUStore) Upsert(chatID int64, now time.Time) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.cache.Get(chatID)
	if !ok {
		sess = Session{ChatID: chatID, LastActive: now}
	}
	if now.After(sess.LastActive) {
		sess.LastActive = now
	}
	sess.MessageCount++

	// Re-adding refreshes both recency and the idle TTL.
	s.cache.Add(chatID, sess)
	return sess
}

// Evict implements Store.
func (s *LRUStore) Evict(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Remove(chatID)
}

// Len implements Store.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}
