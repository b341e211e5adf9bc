// Package realtime broadcasts relay events to connected clients and accepts
// bot replies pushed back by them.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/crawl-relay/internal/types"
)

// Event names exchanged with real-time clients.
const (
	EventTelegramMessage = "telegram:message"
	EventBotResponse     = "bot:response"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// Event is one broadcast message.
type Event struct {
	Name      string    `json:"event"`
	Payload   any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster publishes events. Implementations must not block on slow consumers.
type Broadcaster interface {
	Emit(ctx context.Context, event string, payload any) error
}

// ReplyFunc handles a bot reply pushed by a real-time client.
type ReplyFunc func(ctx context.Context, reply types.BotResponse)

// Hub fans events out to in-process subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]chan Event
	closed bool
	buffer int
	logger *slog.Logger
}

// NewHub creates a hub. A non-positive buffer uses DefaultBufferSize.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uuid.UUID]chan Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once. After Close the
// returned channel is already closed.
func (h *Hub) Subscribe() (uuid.UUID, <-chan Event, func()) {
	id := uuid.New()
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return id, ch, func() {}
	}
	h.subs[id] = ch
	h.mu.Unlock()

	h.logger.Info("client connected", "client_id", id)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", "client_id", id)
		})
	}
	return id, ch, cancel
}

// Close disconnects every subscriber. Later emits are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Emit implements Broadcaster. Subscribers whose queue is full miss the event.
func (h *Hub) Emit(_ context.Context, event string, payload any) error {
	ev := Event{Name: event, Payload: payload, Timestamp: time.Now()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping event for slow client", "client_id", id, "event", event)
		}
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Multi emits to every broadcaster and joins their errors.
type Multi []Broadcaster

// Emit implements Broadcaster.
func (m Multi) Emit(ctx context.Context, event string, payload any) error {
	var errs []error
	for _, b := range m {
		if err := b.Emit(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
