// Package config provides configuration loading and validation for the relay.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the relay configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults, environment variables or CLI flags.
type Config struct {
	// HTTP
	Port      int    `json:"port,omitempty" yaml:"port,omitempty"`
	ClientURL string `json:"client_url,omitempty" yaml:"client_url,omitempty"` // Allowed CORS/WebSocket origin

	// Telegram
	TelegramToken      string `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramAPIRoot    string `json:"telegram_api_root,omitempty" yaml:"telegram_api_root,omitempty"`
	PollTimeoutSeconds int    `json:"poll_timeout_seconds,omitempty" yaml:"poll_timeout_seconds,omitempty"`

	// Completion
	LLMProvider  string `json:"llm_provider,omitempty" yaml:"llm_provider,omitempty"` // groq or gemini
	LLMModel     string `json:"llm_model,omitempty" yaml:"llm_model,omitempty"`
	GroqAPIKey   string `json:"groq_api_key,omitempty" yaml:"groq_api_key,omitempty"`
	GeminiAPIKey string `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty"`

	// Storage and fan-out
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // postgres://, sqlite:// or a file path
	NATSURL     string `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`

	// Crawling and sessions
	NavigationTimeoutSeconds int    `json:"navigation_timeout_seconds,omitempty" yaml:"navigation_timeout_seconds,omitempty"`
	ChromePath               string `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	SessionMaxEntries        int    `json:"session_max_entries,omitempty" yaml:"session_max_entries,omitempty"`
	SessionTTLSeconds        int    `json:"session_ttl_seconds,omitempty" yaml:"session_ttl_seconds,omitempty"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"` // Debug logging
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                     3000,
		ClientURL:                "http://localhost:5173",
		PollTimeoutSeconds:       30,
		LLMProvider:              "groq",
		NavigationTimeoutSeconds: 30,
		SessionMaxEntries:        10000,
		SessionTTLSeconds:        int((24 * time.Hour).Seconds()),
	}
}

// LoadConfig loads configuration from a JSON or YAML file; the format is
// chosen by extension (.yaml and .yml are YAML, anything else is JSON).
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// ApplyEnv overlays non-empty environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strVars := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &c.TelegramToken,
		"TELEGRAM_API_BASE":  &c.TelegramAPIRoot,
		"LLM_PROVIDER":       &c.LLMProvider,
		"LLM_MODEL":          &c.LLMModel,
		"GROQ_API_KEY":       &c.GroqAPIKey,
		"GEMINI_API_KEY":     &c.GeminiAPIKey,
		"DATABASE_URL":       &c.DatabaseURL,
		"NATS_URL":           &c.NATSURL,
		"CLIENT_URL":         &c.ClientURL,
		"CHROME_PATH":        &c.ChromePath,
	}
	for name, field := range strVars {
		if v := getenv(name); v != "" {
			*field = v
		}
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: PORT must be an integer, got %q", v)
		}
		c.Port = port
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.NavigationTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'navigation_timeout_seconds' must be non-negative")
	}
	if c.SessionMaxEntries < 0 {
		return fmt.Errorf("config error: 'session_max_entries' must be non-negative")
	}
	if c.SessionTTLSeconds < 0 {
		return fmt.Errorf("config error: 'session_ttl_seconds' must be non-negative")
	}
	if c.PollTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'poll_timeout_seconds' must be non-negative")
	}

	switch c.LLMProvider {
	case "", "groq", "gemini":
	default:
		return fmt.Errorf("config error: unknown llm_provider %q (want groq or gemini)", c.LLMProvider)
	}

	return nil
}

// CompletionAPIKey returns the key for the configured provider.
func (c *Config) CompletionAPIKey() string {
	if c.LLMProvider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.GroqAPIKey
}

// NavigationTimeout returns the page navigation bound.
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutSeconds) * time.Second
}

// SessionTTL returns how long an idle session is kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.ClientURL == "" {
		result.ClientURL = defaults.ClientURL
	}
	if result.TelegramToken == "" {
		result.TelegramToken = defaults.TelegramToken
	}
	if result.TelegramAPIRoot == "" {
		result.TelegramAPIRoot = defaults.TelegramAPIRoot
	}
	if result.LLMProvider == "" {
		result.LLMProvider = defaults.LLMProvider
	}
	if result.LLMModel == "" {
		result.LLMModel = defaults.LLMModel
	}
	if result.GroqAPIKey == "" {
		result.GroqAPIKey = defaults.GroqAPIKey
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.NATSURL == "" {
		result.NATSURL = defaults.NATSURL
	}
	if result.ChromePath == "" {
		result.ChromePath = defaults.ChromePath
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.PollTimeoutSeconds == 0 {
		result.PollTimeoutSeconds = defaults.PollTimeoutSeconds
	}
	if result.NavigationTimeoutSeconds == 0 {
		result.NavigationTimeoutSeconds = defaults.NavigationTimeoutSeconds
	}
	if result.SessionMaxEntries == 0 {
		result.SessionMaxEntries = defaults.SessionMaxEntries
	}
	if result.SessionTTLSeconds == 0 {
		result.SessionTTLSeconds = defaults.SessionTTLSeconds
	}

	// Bool fields: true wins
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// Load reads the optional config file, overlays the environment and fills
// defaults. An empty path skips the file.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}

	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return Config{}, err
	}
	return merged, nil
}
