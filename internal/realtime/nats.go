package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/crawl-relay/internal/types"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix namespaces every subject the bridge uses.
const SubjectPrefix = "crawlrelay"

// Subject maps an event name such as "telegram:message" to "crawlrelay.telegram.message".
func Subject(event string) string {
	return SubjectPrefix + "." + strings.ReplaceAll(event, ":", ".")
}

// NATSBridge mirrors broadcast events onto NATS and receives bot replies from it.
type NATSBridge struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// ConnectNATS dials the NATS server at url.
func ConnectNATS(url string, logger *slog.Logger) (*NATSBridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("crawl-relay"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewNATSBridge(conn, logger), nil
}

// NewNATSBridge wraps an existing connection.
func NewNATSBridge(conn *nats.Conn, logger *slog.Logger) *NATSBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSBridge{conn: conn, logger: logger}
}

// Emit implements Broadcaster. Publishing is buffered by the client and never waits for subscribers.
func (b *NATSBridge) Emit(_ context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	if err := b.conn.Publish(Subject(event), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event, err)
	}
	return nil
}

// SubscribeReplies delivers bot:response messages to onReply until ctx is done.
func (b *NATSBridge) SubscribeReplies(ctx context.Context, onReply ReplyFunc) error {
	sub, err := b.conn.Subscribe(Subject(EventBotResponse), func(msg *nats.Msg) {
		var reply types.BotResponse
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			b.logger.Warn("invalid bot:response payload on nats", "error", err)
			return
		}
		onReply(context.WithoutCancel(ctx), reply)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Subject(EventBotResponse), err)
	}

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		b.logger.Warn("nats unsubscribe failed", "error", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (b *NATSBridge) Close() {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}
