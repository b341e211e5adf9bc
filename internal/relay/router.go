// Package relay routes inbound chat messages: plain text goes to the
// completion service, messages containing a URL are crawled and summarized.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/jonathan/crawl-relay/internal/llm"
	"github.com/jonathan/crawl-relay/internal/realtime"
	"github.com/jonathan/crawl-relay/internal/rendering"
	"github.com/jonathan/crawl-relay/internal/session"
	"github.com/jonathan/crawl-relay/internal/types"
)

// Chat replies sent by the router.
const (
	CrawlAck          = "🔍 Crawling webpage, please wait..."
	ProcessingFailure = "❌ Error processing your message."
)

// Kind is the routing decision for one inbound message.
type Kind string

// Message kinds.
const (
	KindCrawl Kind = "crawl"
	KindChat  Kind = "chat"
)

var urlPattern = regexp.MustCompile(`(?i)https?://\S+`)

// Classify reports KindCrawl when text contains an http(s) URL.
func Classify(text string) Kind {
	if urlPattern.MatchString(text) {
		return KindCrawl
	}
	return KindChat
}

// Sender delivers a text message into a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// PageFetcher crawls one page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*types.PageContent, error)
}

// RecordWriter appends message records.
type RecordWriter interface {
	InsertMessage(ctx context.Context, rec types.MessageRecord) error
}

// Metrics receives routing outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	InboundMessage(kind string)
	CrawlResult(outcome string)
	CompletionResult(outcome string)
	SideEffectFailure(op string)
}

// Deps are the router's collaborators. Records, Broadcaster and Metrics may be nil.
type Deps struct {
	Sender      Sender
	Records     RecordWriter
	Broadcaster realtime.Broadcaster
	Completer   llm.Completer
	Fetcher     PageFetcher
	Sessions    session.Store
	Metrics     Metrics
	Logger      *slog.Logger
	Now         func() time.Time
}

// Router handles inbound and outbound chat traffic.
type Router struct {
	deps Deps
}

// NewRouter validates deps and fills defaults.
func NewRouter(deps Deps) (*Router, error) {
	switch {
	case deps.Sender == nil:
		return nil, errors.New("relay: sender is required")
	case deps.Completer == nil:
		return nil, errors.New("relay: completer is required")
	case deps.Fetcher == nil:
		return nil, errors.New("relay: page fetcher is required")
	case deps.Sessions == nil:
		return nil, errors.New("relay: session store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	return &Router{deps: deps}, nil
}

// HandleInboundMessage processes one message received from a chat.
// Failures are logged and turned into chat replies; nothing is returned.
func (r *Router) HandleInboundMessage(ctx context.Context, chatID int64, text string) {
	log := r.deps.Logger.With("chat_id", chatID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("message handling panicked", "panic", fmt.Sprint(rec))
			r.send(ctx, log, chatID, ProcessingFailure)
		}
	}()

	now := r.deps.Now()
	r.persist(ctx, log, chatID, text, types.DirectionIncoming, now)
	r.broadcast(ctx, log, realtime.EventTelegramMessage, types.InboundEvent{
		ChatID:    chatID,
		Text:      text,
		Timestamp: now,
	})

	sess := r.deps.Sessions.Upsert(chatID, now)
	kind := Classify(text)
	r.deps.Metrics.InboundMessage(string(kind))
	log.Debug("message received", "kind", kind, "message_count", sess.MessageCount)

	switch kind {
	case KindCrawl:
		r.handleCrawl(ctx, log, chatID, text)
	default:
		r.handleChat(ctx, log, chatID, text)
	}
}

// handleCrawl passes the whole message text to the fetcher; a message that
// carries words around the URL therefore fails navigation and gets the
// friendly crawl error.
func (r *Router) handleCrawl(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	r.send(ctx, log, chatID, CrawlAck)

	content, err := r.deps.Fetcher.FetchPage(ctx, text)
	if err != nil {
		r.deps.Metrics.CrawlResult("error")
		log.Warn("crawl failed", "op", "crawl", "error", err)
		r.send(ctx, log, chatID, rendering.FormatCrawlError(err))
		return
	}

	r.deps.Metrics.CrawlResult("ok")
	r.send(ctx, log, chatID, rendering.FormatCrawlerResults(content))
}

func (r *Router) handleChat(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	reply, err := r.deps.Completer.Complete(ctx, text)
	if err != nil {
		reply = llm.FallbackReply(err)
		r.deps.Metrics.CompletionResult("error")
		log.Warn("completion failed", "op", "complete", "error", err)
	} else {
		r.deps.Metrics.CompletionResult("ok")
	}

	r.send(ctx, log, chatID, reply)
	r.persist(ctx, log, chatID, reply, types.DirectionOutgoing, r.deps.Now())
}

// RelayOutboundReply sends a reply pushed by a real-time client into a chat
// and records it as outgoing.
func (r *Router) RelayOutboundReply(ctx context.Context, chatID int64, text string) {
	log := r.deps.Logger.With("chat_id", chatID)
	r.send(ctx, log, chatID, text)
	r.persist(ctx, log, chatID, text, types.DirectionOutgoing, r.deps.Now())
}

// HandleBotResponse adapts RelayOutboundReply to realtime.ReplyFunc.
func (r *Router) HandleBotResponse(ctx context.Context, reply types.BotResponse) {
	r.RelayOutboundReply(ctx, reply.ChatID, reply.Text)
}

func (r *Router) send(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	if err := r.deps.Sender.SendMessage(ctx, chatID, text); err != nil {
		r.deps.Metrics.SideEffectFailure("send")
		log.Warn("send failed", "op", "send", "error", err)
	}
}

func (r *Router) persist(ctx context.Context, log *slog.Logger, chatID int64, text, direction string, at time.Time) {
	if r.deps.Records == nil {
		return
	}
	rec := types.NewMessageRecord(types.PlatformTelegram, strconv.FormatInt(chatID, 10), text, direction, at)
	if err := r.deps.Records.InsertMessage(ctx, rec); err != nil {
		r.deps.Metrics.SideEffectFailure("persist")
		log.Warn("persist failed", "op", "persist", "direction", direction, "error", err)
	}
}

func (r *Router) broadcast(ctx context.Context, log *slog.Logger, event string, payload any) {
	if r.deps.Broadcaster == nil {
		return
	}
	if err := r.deps.Broadcaster.Emit(ctx, event, payload); err != nil {
		r.deps.Metrics.SideEffectFailure("broadcast")
		log.Warn("broadcast failed", "op", "broadcast", "error", err)
	}
}

type nopMetrics struct{}

func (nopMetrics) InboundMessage(string)    {}
func (nopMetrics) CrawlResult(string)       {}
func (nopMetrics) CompletionResult(string)  {}
func (nopMetrics) SideEffectFailure(string) {}
