// Package llm provides the generative completion client used for conversational replies.
// The provider is selected by configuration; callers only see Completer.
package llm

import "time"

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGroq is Groq's OpenAI-compatible chat completions API
	ProviderGroq Provider = "groq"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Request defaults shared by all providers.
const (
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 2048
	DefaultSystemPrompt = "You are a helpful AI assistant."
	DefaultTimeout      = 60 * time.Second

	DefaultGroqEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	DefaultGroqModel    = "gemma2-9b-it"
	DefaultGeminiModel  = "gemini-2.5-flash"
)

// Config holds the completion configuration for the application
type Config struct {
	Provider     Provider
	Model        string
	APIKey       string
	Endpoint     string // only used by OpenAI-compatible providers
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	Timeout      time.Duration
}

// DefaultConfig returns the default configuration (currently Groq)
func DefaultConfig() *Config {
	return &Config{
		Provider:     ProviderGroq,
		Model:        DefaultGroqModel,
		Endpoint:     DefaultGroqEndpoint,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
		SystemPrompt: DefaultSystemPrompt,
		Timeout:      DefaultTimeout,
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	cfg := DefaultConfig()
	cfg.Provider = ProviderGemini
	cfg.Model = DefaultGeminiModel
	cfg.Endpoint = ""
	return cfg
}

// ConfigFor returns the defaults for provider. Unknown providers get the Groq defaults.
func ConfigFor(provider Provider) *Config {
	if provider == ProviderGemini {
		return DefaultGeminiConfig()
	}
	return DefaultConfig()
}

// WithModel returns a copy of the config using model
func (c *Config) WithModel(model string) *Config {
	newConfig := *c
	newConfig.Model = model
	return &newConfig
}
