package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonathan/crawl-relay/internal/llm"
	"github.com/jonathan/crawl-relay/internal/realtime"
	"github.com/jonathan/crawl-relay/internal/types"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 30 * time.Second

// MessageLister reads stored message history.
type MessageLister interface {
	ListMessages(ctx context.Context, userID string, limit int) ([]types.MessageRecord, error)
}

// Config holds server configuration
type Config struct {
	Port      int
	ClientURL string // allowed CORS and WebSocket origin; "" or "*" allows any
	Logger    *slog.Logger
}

// Deps are the collaborators behind the HTTP endpoints. Messages, Hub and
// Metrics are optional; their endpoints answer 503 or are not mounted.
type Deps struct {
	Completer llm.Completer
	Messages  MessageLister
	Hub       *realtime.Hub
	OnReply   realtime.ReplyFunc
	Metrics   http.Handler
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	deps       Deps
	clientURL  string
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		deps:      deps,
		clientURL: cfg.ClientURL,
		logger:    logger,
		now:       time.Now,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: /events and /ws stream for the life of the client.
	}

	if deps.Hub != nil {
		s.httpServer.RegisterOnShutdown(deps.Hub.Close)
	}

	return s
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /messages/{user_id}", s.handleListMessages)

	if s.deps.Hub != nil {
		mux.HandleFunc("GET /events", s.handleEvents)
		mux.Handle("GET /ws", realtime.NewWebSocketHandler(s.deps.Hub, s.deps.OnReply, s.clientURL, s.logger))
	}
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}

	return s.withLogging(s.withCORS(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	origin := s.clientURL
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration", time.Since(start))
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
