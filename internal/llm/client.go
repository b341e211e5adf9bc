package llm

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Completer produces a conversational reply for a prompt.
// Failures are returned as *CompletionError; choosing a fallback reply is up to the caller.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// NewCompleter creates a completion client based on configuration
func NewCompleter(ctx context.Context, config *Config) (Completer, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	default:
		return NewOpenAIClient(config)
	}
}

// GeminiClient implements Completer for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, &CompletionError{Kind: ErrKindConfig, Provider: ProviderGemini, Message: "API key is required"}
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, &CompletionError{Kind: ErrKindConfig, Provider: ProviderGemini, Message: "failed to create client", Cause: err}
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Complete implements Completer
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.config.Model)
	model.SetTemperature(c.config.Temperature)
	model.SetMaxOutputTokens(int32(c.config.MaxTokens))
	if c.config.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(c.config.SystemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &CompletionError{Kind: ErrKindTransport, Provider: ProviderGemini, Cause: err}
	}

	return extractTextFromResponse(resp)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &CompletionError{Kind: ErrKindEmpty, Provider: ProviderGemini, Message: "no candidates in response"}
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &CompletionError{Kind: ErrKindEmpty, Provider: ProviderGemini, Message: "no content in response"}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", &CompletionError{Kind: ErrKindEmpty, Provider: ProviderGemini, Message: "no text parts in response"}
	}

	return text, nil
}
