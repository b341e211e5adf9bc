package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// OpenAIClient implements Completer for OpenAI-compatible chat completion
// endpoints such as Groq.
type OpenAIClient struct {
	config     *Config
	httpClient *http.Client
}

// NewOpenAIClient creates a client for config.Endpoint.
func NewOpenAIClient(config *Config) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, &CompletionError{Kind: ErrKindConfig, Provider: config.Provider, Message: "API key is required"}
	}
	if config.Endpoint == "" {
		return nil, &CompletionError{Kind: ErrKindConfig, Provider: config.Provider, Message: "endpoint is required"}
	}
	return &OpenAIClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Completer
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if c.config.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.config.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	})
	if err != nil {
		return "", c.fail(ErrKindConfig, 0, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", c.fail(ErrKindConfig, 0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.fail(ErrKindTransport, 0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.fail(ErrKindTransport, 0, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.fail(ErrKindStatus, resp.StatusCode, errorMessage(body, resp.Status), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", c.fail(ErrKindDecode, 0, "failed to parse response", err)
	}

	if len(parsed.Choices) == 0 {
		return "", c.fail(ErrKindEmpty, 0, "no choices in response", nil)
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", c.fail(ErrKindEmpty, 0, "empty message content", nil)
	}

	return content, nil
}

// Close implements Completer
func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *OpenAIClient) fail(kind ErrorKind, status int, message string, cause error) *CompletionError {
	return &CompletionError{
		Kind:       kind,
		Provider:   c.config.Provider,
		StatusCode: status,
		Message:    message,
		Cause:      cause,
	}
}

// errorMessage pulls a readable message out of an error body, falling back to the status text.
func errorMessage(body []byte, status string) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return status
}
