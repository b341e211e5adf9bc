package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/crawl-relay/internal/config"
	"github.com/jonathan/crawl-relay/internal/crawling"
	"github.com/jonathan/crawl-relay/internal/db"
	"github.com/jonathan/crawl-relay/internal/fetch"
	"github.com/jonathan/crawl-relay/internal/llm"
	"github.com/jonathan/crawl-relay/internal/observability"
	"github.com/jonathan/crawl-relay/internal/realtime"
	"github.com/jonathan/crawl-relay/internal/relay"
	"github.com/jonathan/crawl-relay/internal/server"
	"github.com/jonathan/crawl-relay/internal/session"
	"github.com/jonathan/crawl-relay/internal/telegram"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay",
	Long: `Start the HTTP server, the Telegram poller (when TELEGRAM_BOT_TOKEN is set)
and the NATS bridge (when NATS_URL is set).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT and the config file)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	logger := newLogger(os.Stderr, cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve wires every component and runs them until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	defer func() { _ = completer.Close() }()

	var store db.MessageStore
	if cfg.DatabaseURL != "" {
		store, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open message store: %w", err)
		}
		defer store.Close()
	} else {
		logger.Warn("DATABASE_URL not set; messages will not be stored")
	}

	hub := realtime.NewHub(realtime.DefaultBufferSize, logger)
	broadcasters := realtime.Multi{hub}

	var bridge *realtime.NATSBridge
	if cfg.NATSURL != "" {
		bridge, err = realtime.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer bridge.Close()
		broadcasters = append(broadcasters, bridge)
	}

	var (
		sender relay.Sender = unconfiguredSender{}
		poller *telegram.Poller
	)
	if cfg.TelegramToken != "" {
		client := telegram.NewClient(
			telegram.APIBase(cfg.TelegramAPIRoot, cfg.TelegramToken),
			time.Duration(cfg.PollTimeoutSeconds+10)*time.Second,
		)
		sender = client
		poller = telegram.NewPoller(client, cfg.PollTimeoutSeconds, logger)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set; Telegram polling disabled")
	}

	launcher := fetch.NewChromeLauncher()
	launcher.ExecPath = cfg.ChromePath

	metrics := observability.NewMetrics()

	deps := relay.Deps{
		Sender:      sender,
		Broadcaster: broadcasters,
		Completer:   completer,
		Fetcher:     crawling.NewExtractor(launcher, cfg.NavigationTimeout(), logger),
		Sessions: session.NewLRUStore(session.Options{
			MaxEntries: cfg.SessionMaxEntries,
			TTL:        cfg.SessionTTL(),
			Logger:     logger,
		}),
		Metrics: metrics,
		Logger:  logger,
	}
	if store != nil {
		deps.Records = store
	}
	router, err := relay.NewRouter(deps)
	if err != nil {
		return err
	}

	srvDeps := server.Deps{
		Completer: completer,
		Hub:       hub,
		OnReply:   router.HandleBotResponse,
		Metrics:   metrics.Handler(),
	}
	if store != nil {
		srvDeps.Messages = store
	}
	srv := server.New(server.Config{
		Port:      cfg.Port,
		ClientURL: cfg.ClientURL,
		Logger:    logger,
	}, srvDeps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if poller != nil {
		g.Go(func() error {
			return poller.Run(gctx, router.HandleInboundMessage)
		})
	}
	if bridge != nil {
		g.Go(func() error {
			return bridge.SubscribeReplies(gctx, router.HandleBotResponse)
		})
	}

	return g.Wait()
}

func newCompleter(ctx context.Context, cfg config.Config) (llm.Completer, error) {
	llmCfg := llm.ConfigFor(llm.Provider(cfg.LLMProvider))
	if cfg.LLMModel != "" {
		llmCfg = llmCfg.WithModel(cfg.LLMModel)
	}
	llmCfg.APIKey = cfg.CompletionAPIKey()
	return llm.NewCompleter(ctx, llmCfg)
}

// unconfiguredSender stands in for Telegram when no bot token is set, so
// replies pushed by real-time clients fail visibly in the logs.
type unconfiguredSender struct{}

func (unconfiguredSender) SendMessage(context.Context, int64, string) error {
	return errors.New("telegram is not configured")
}
