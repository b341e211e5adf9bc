package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Direction values for MessageRecord.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// PlatformTelegram identifies messages relayed through the Telegram bot.
const PlatformTelegram = "telegram"

// MessageRecord is an immutable fact appended to the message store.
type MessageRecord struct {
	ID        uuid.UUID `json:"id"`
	Platform  string    `json:"platform"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"message"`
	Direction string    `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessageRecord creates a record with a fresh ID.
func NewMessageRecord(platform, userID, text, direction string, at time.Time) MessageRecord {
	return MessageRecord{
		ID:        uuid.New(),
		Platform:  platform,
		UserID:    userID,
		Text:      text,
		Direction: direction,
		Timestamp: at,
	}
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Validate validates the ChatRequest using the validator.
func (r *ChatRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// InboundEvent is broadcast for every message received from the chat platform.
type InboundEvent struct {
	ChatID    int64     `json:"chatId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// BotResponse is pushed by real-time clients to reply into a chat.
type BotResponse struct {
	ChatID int64  `json:"chatId"`
	Text   string `json:"text"`
}
