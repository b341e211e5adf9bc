package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/crawl-relay/internal/llm"
	"github.com/jonathan/crawl-relay/internal/realtime"
	"github.com/jonathan/crawl-relay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockCompleter) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func (m *mockCompleter) Close() error { return nil }

type mockMessages struct {
	records  []types.MessageRecord
	err      error
	gotUser  string
	gotLimit int
}

func (m *mockMessages) ListMessages(_ context.Context, userID string, limit int) ([]types.MessageRecord, error) {
	m.gotUser = userID
	m.gotLimit = limit
	return m.records, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(deps Deps) *Server {
	return New(Config{Port: 0, ClientURL: "http://localhost:5173", Logger: discardLogger()}, deps)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(Deps{})
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "2024-01-02T03:04:05Z", body.Timestamp)
	}
}

func TestHandleChat_Success(t *testing.T) {
	completer := &mockCompleter{reply: "Hi there"}
	s := newTestServer(Deps{Completer: completer})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hello"}`))
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body types.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Hi there", body.Reply)
	assert.Equal(t, []string{"hello"}, completer.prompts)
}

func TestHandleChat_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "missing message", body: `{}`, wantErr: "Message is required"},
		{name: "empty message", body: `{"message":""}`, wantErr: "Message is required"},
		{name: "invalid json", body: `{not json`, wantErr: "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &mockCompleter{reply: "unused"}
			s := newTestServer(Deps{Completer: completer})

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantErr, body["error"])
			assert.Empty(t, completer.prompts)
		})
	}
}

func TestHandleChat_CompletionFailureRepliesWithApology(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantReply string
	}{
		{
			name:      "upstream status",
			err:       &llm.CompletionError{Kind: llm.ErrKindStatus, Provider: llm.ProviderGroq, StatusCode: http.StatusBadGateway},
			wantReply: llm.FallbackReplyText,
		},
		{
			name:      "transport",
			err:       &llm.CompletionError{Kind: llm.ErrKindTransport, Provider: llm.ProviderGroq},
			wantReply: llm.FallbackReplyText,
		},
		{
			name:      "empty completion",
			err:       &llm.CompletionError{Kind: llm.ErrKindEmpty, Provider: llm.ProviderGroq},
			wantReply: llm.EmptyReplyText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(Deps{Completer: &mockCompleter{err: tt.err}})

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"message":"hi"}`)))

			require.Equal(t, http.StatusOK, rec.Code)
			var body types.ChatResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantReply, body.Reply)
		})
	}
}

func TestHandleChat_NoCompleter(t *testing.T) {
	s := newTestServer(Deps{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"message":"hi"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func TestHandleListMessages(t *testing.T) {
	store := &mockMessages{records: []types.MessageRecord{
		types.NewMessageRecord(types.PlatformTelegram, "42", "hello", types.DirectionIncoming, time.Now()),
	}}
	s := newTestServer(Deps{Messages: store})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/42?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body MessagesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "42", body.UserID)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "hello", body.Messages[0].Text)
	assert.Equal(t, "42", store.gotUser)
	assert.Equal(t, 5, store.gotLimit)
}

func TestHandleListMessages_Errors(t *testing.T) {
	t.Run("bad limit", func(t *testing.T) {
		s := newTestServer(Deps{Messages: &mockMessages{}})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/42?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no store", func(t *testing.T) {
		s := newTestServer(Deps{})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/42", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		s := newTestServer(Deps{Messages: &mockMessages{err: errors.New("connection refused")}})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/42", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		s := newTestServer(Deps{Messages: &mockMessages{}})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/7", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"messages":[]`)
	})
}

func TestCORS(t *testing.T) {
	s := newTestServer(Deps{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/chat", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestMetricsMountedWhenProvided(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "relay_metric 1\n")
	})

	rec := httptest.NewRecorder()
	newTestServer(Deps{Metrics: metrics}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_metric 1")

	rec = httptest.NewRecorder()
	newTestServer(Deps{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEvents_StreamsHubEvents(t *testing.T) {
	hub := realtime.NewHub(4, discardLogger())
	ts := httptest.NewServer(newTestServer(Deps{Hub: hub}).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Emit(context.Background(), realtime.EventTelegramMessage,
		types.InboundEvent{ChatID: 5, Text: "hello"}))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	assert.Equal(t, "event: telegram:message", lines[0])
	assert.Contains(t, lines[1], `"chatId":5`)
	assert.Contains(t, lines[1], `"text":"hello"`)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	hub := realtime.NewHub(1, discardLogger())
	s := newTestServer(Deps{Hub: hub})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
