package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler processes one inbound text message.
type Handler func(ctx context.Context, chatID int64, text string)

// Poller long-polls getUpdates and dispatches every text message to a handler.
//
// Each message is handled in its own goroutine. Telegram delivers updates for a
// chat in order, but handlers for the same chat may overlap once dispatched.
type Poller struct {
	client      *Client
	pollTimeout int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// NewPoller creates a poller using a long-poll timeout in seconds.
func NewPoller(client *Client, pollTimeout int, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:      client,
		pollTimeout: pollTimeout,
		retryDelay:  3 * time.Second,
		logger:      logger,
	}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers.
func (p *Poller) Run(ctx context.Context, handle Handler) error {
	var (
		wg     sync.WaitGroup
		offset int64
	)
	defer wg.Wait()

	p.logger.Info("telegram polling started", "timeout_s", p.pollTimeout)

	for {
		if ctx.Err() != nil {
			p.logger.Info("telegram polling stopped")
			return nil
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(p.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || u.Message.Text == "" {
				p.logger.Debug("skipping non-text update", "update_id", u.UpdateID)
				continue
			}

			msg := u.Message
			wg.Add(1)
			go func() {
				defer wg.Done()
				handle(context.WithoutCancel(ctx), msg.Chat.ID, msg.Text)
			}()
		}
	}
}
