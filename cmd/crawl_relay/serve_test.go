package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jonathan/crawl-relay/internal/config"
	"github.com/jonathan/crawl-relay/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompleter_RequiresKey(t *testing.T) {
	cfg := config.Defaults()

	_, err := newCompleter(context.Background(), cfg)
	require.Error(t, err)

	var cerr *llm.CompletionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, llm.ErrKindConfig, cerr.Kind)
}

func TestNewCompleter_Groq(t *testing.T) {
	cfg := config.Defaults()
	cfg.GroqAPIKey = "test-key"
	cfg.LLMModel = "llama-3.1-8b-instant"

	c, err := newCompleter(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.IsType(t, &llm.OpenAIClient{}, c)
}

func TestServe_FailsFastWithoutCompletionKey(t *testing.T) {
	err := serve(context.Background(), config.Defaults(), newLogger(io.Discard, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create completion client")
}

func TestUnconfiguredSender(t *testing.T) {
	err := unconfiguredSender{}.SendMessage(context.Background(), 1, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
