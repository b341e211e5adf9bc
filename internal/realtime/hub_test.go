package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_EmitReachesAllSubscribers(t *testing.T) {
	hub := NewHub(4, discardLogger())
	_, a, cancelA := hub.Subscribe()
	defer cancelA()
	_, b, cancelB := hub.Subscribe()
	defer cancelB()

	require.NoError(t, hub.Emit(context.Background(), EventTelegramMessage, map[string]string{"text": "hi"}))

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, EventTelegramMessage, ev.Name)
		assert.Equal(t, map[string]string{"text": "hi"}, ev.Payload)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1, discardLogger())
	_, ch, cancel := hub.Subscribe()
	defer cancel()

	require.NoError(t, hub.Emit(context.Background(), "e", 1))
	require.NoError(t, hub.Emit(context.Background(), "e", 2))

	ev := <-ch
	assert.Equal(t, 1, ev.Payload)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second event %v", extra)
	default:
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	hub := NewHub(0, discardLogger())
	_, ch, cancel := hub.Subscribe()
	assert.Equal(t, 1, hub.Clients())

	cancel()
	cancel()

	assert.Equal(t, 0, hub.Clients())
	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, hub.Emit(context.Background(), "e", nil))
}

func TestHub_CloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub(0, discardLogger())
	_, ch, cancel := hub.Subscribe()

	hub.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Clients())

	_, late, _ := hub.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
	assert.NoError(t, hub.Emit(context.Background(), "e", nil))
}

type failingBroadcaster struct{ err error }

func (f failingBroadcaster) Emit(context.Context, string, any) error { return f.err }

func TestMulti_JoinsErrors(t *testing.T) {
	hub := NewHub(1, discardLogger())
	_, ch, cancel := hub.Subscribe()
	defer cancel()

	boom := errors.New("boom")
	err := Multi{hub, failingBroadcaster{err: boom}}.Emit(context.Background(), "e", "x")

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "x", (<-ch).Payload)
	assert.NoError(t, Multi{}.Emit(context.Background(), "e", nil))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "crawlrelay.telegram.message", Subject(EventTelegramMessage))
	assert.Equal(t, "crawlrelay.bot.response", Subject(EventBotResponse))
}
