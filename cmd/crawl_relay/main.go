// Package main provides the entry point for the crawl relay: a Telegram bot
// that summarizes web pages and answers chat messages.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/jonathan/crawl-relay/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "crawl_relay",
	Short: "Telegram crawl and chat relay",
	Long:  "crawl_relay relays Telegram messages: links are crawled in a headless browser and summarized, anything else is answered by a completion model.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON or YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and detailed output")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the config file, the environment and the --verbose flag.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return config.Config{}, err
	}
	cfg.Verbose = cfg.Verbose || verbose
	return cfg, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
