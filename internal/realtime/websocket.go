package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonathan/crawl-relay/internal/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 64 << 10
)

// frame is the wire format for WebSocket messages in both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WebSocketHandler streams hub events to a WebSocket client and relays
// bot:response frames it sends back.
type WebSocketHandler struct {
	hub      *Hub
	onReply  ReplyFunc
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a handler. allowedOrigin "*" or "" accepts any origin.
func NewWebSocketHandler(hub *Hub, onReply ReplyFunc, allowedOrigin string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:     hub,
		onReply: onReply,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// ServeHTTP upgrades the connection and runs the read and write loops.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	_, events, cancel := h.hub.Subscribe()
	ctx, stop := context.WithCancel(context.WithoutCancel(r.Context()))

	go func() {
		defer stop()
		h.readLoop(ctx, conn)
	}()

	h.writeLoop(ctx, conn, events)
	cancel()
	_ = conn.Close()
}

func (h *WebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		if f.Event != EventBotResponse {
			h.logger.Debug("ignoring websocket event", "event", f.Event)
			continue
		}

		var reply types.BotResponse
		if err := json.Unmarshal(f.Data, &reply); err != nil {
			h.logger.Warn("invalid bot:response payload", "error", err)
			continue
		}
		if h.onReply != nil {
			// Replies outlive the connection that carried them.
			h.onReply(context.WithoutCancel(ctx), reply)
		}
	}
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				h.logger.Warn("failed to encode event", "event", ev.Name, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame{Event: ev.Name, Data: data}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
