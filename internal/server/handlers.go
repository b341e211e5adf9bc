package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/crawl-relay/internal/llm"
	"github.com/jonathan/crawl-relay/internal/types"
)

// keepAliveInterval is how often an idle event stream gets a comment line.
const keepAliveInterval = 25 * time.Second

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// MessagesResponse is the body of GET /messages/{user_id}
type MessagesResponse struct {
	UserID   string                `json:"user_id"`
	Messages []types.MessageRecord `json:"messages"`
}

// handleHealth returns server health status without touching any backend
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	})
}

// handleChat answers one prompt through the completion service
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		var verr *ErrValidation
		if errors.As(err, &verr) && verr.Field == "body" {
			s.errorResponse(w, HTTPStatus(err), "Invalid request body")
			return
		}
		s.errorResponse(w, HTTPStatus(err), "Message is required")
		return
	}

	if s.deps.Completer == nil {
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	reply, err := s.deps.Completer.Complete(r.Context(), req.Message)
	if err != nil {
		s.logger.Warn("chat completion failed", "error", err)
		reply = llm.FallbackReply(err)
	}

	s.jsonResponse(w, http.StatusOK, types.ChatResponse{Reply: reply})
}

func decodeChatRequest(r *http.Request) (*types.ChatRequest, error) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &ErrValidation{Field: "body", Message: err.Error()}
	}
	if err := req.Validate(); err != nil {
		return nil, &ErrValidation{Field: "message", Message: "is required"}
	}
	return &req, nil
}

// handleListMessages returns stored history for one chat user
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("user_id"))
	if userID == "" {
		s.errorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	if s.deps.Messages == nil {
		err := &ErrUnavailable{Feature: "message history"}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	messages, err := s.deps.Messages.ListMessages(r.Context(), userID, limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if messages == nil {
		messages = []types.MessageRecord{}
	}

	s.jsonResponse(w, http.StatusOK, MessagesResponse{UserID: userID, Messages: messages})
}

// handleEvents streams hub events as Server-Sent Events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	_, events, cancel := s.deps.Hub.Subscribe()
	defer cancel()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sse.WriteEvent(ev.Name, ev.Payload); err != nil {
				s.logger.Debug("event stream closed", "event", ev.Name, "error", err)
				return
			}
		case <-ticker.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		}
	}
}
