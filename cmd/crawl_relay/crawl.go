package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jonathan/crawl-relay/internal/crawling"
	"github.com/jonathan/crawl-relay/internal/fetch"
	"github.com/jonathan/crawl-relay/internal/observability"
	"github.com/jonathan/crawl-relay/internal/relay"
	"github.com/jonathan/crawl-relay/internal/rendering"
	"github.com/jonathan/crawl-relay/internal/types"
	"github.com/spf13/cobra"
)

// Crawl modes.
const (
	crawlModeBrowser = "browser"
	crawlModeHTTP    = "http"
	crawlModeAuto    = "auto"
)

var crawlMode string

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl one page and print the chat summary",
	Long: `Crawl a page the same way the bot does and print the message it would send.
With --mode http the page is fetched without a browser; --mode auto tries plain
HTTP first and falls back to the browser when too little text comes back.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().StringVar(&crawlMode, "mode", crawlModeBrowser, "Fetch mode: browser, http or auto")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.Verbose)

	launcher := fetch.NewChromeLauncher()
	launcher.ExecPath = cfg.ChromePath
	browser := crawling.NewExtractor(launcher, cfg.NavigationTimeout(), logger)

	fetcher, err := newPageFetcher(crawlMode, browser, logger)
	if err != nil {
		return err
	}

	return crawlOnce(cmd.Context(), fetcher, args[0], cmd.OutOrStdout(), cfg.Verbose)
}

// crawlOnce prints what the bot would reply for url.
func crawlOnce(ctx context.Context, fetcher relay.PageFetcher, url string, out io.Writer, detailed bool) error {
	content, err := fetcher.FetchPage(ctx, url)
	if err != nil {
		if detailed {
			observability.NewPrinter(out).PrintCrawlError(err)
		} else {
			_, _ = fmt.Fprintln(out, rendering.FormatCrawlError(err))
		}
		return err
	}

	if detailed {
		printer := observability.NewPrinter(out)
		printer.PrintPageContent(content)
		printer.PrintImages(content.Images)
		printer.PrintLinks(content.Links)
	}

	_, err = fmt.Fprintln(out, rendering.FormatCrawlerResults(content))
	return err
}

func newPageFetcher(mode string, browser relay.PageFetcher, logger *slog.Logger) (relay.PageFetcher, error) {
	switch mode {
	case crawlModeBrowser:
		return browser, nil
	case crawlModeHTTP:
		return httpFetcher{}, nil
	case crawlModeAuto:
		return autoFetcher{http: httpFetcher{}, browser: browser, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown crawl mode %q (want %s, %s or %s)", mode, crawlModeBrowser, crawlModeHTTP, crawlModeAuto)
	}
}

type httpFetcher struct {
	opts *fetch.Options
}

func (f httpFetcher) FetchPage(ctx context.Context, url string) (*types.PageContent, error) {
	return crawling.FetchPageHTTP(ctx, url, f.opts)
}

// autoFetcher prefers plain HTTP and renders in the browser when the page
// looks script-driven.
type autoFetcher struct {
	http    relay.PageFetcher
	browser relay.PageFetcher
	logger  *slog.Logger
}

func (f autoFetcher) FetchPage(ctx context.Context, url string) (*types.PageContent, error) {
	content, err := f.http.FetchPage(ctx, url)
	if err == nil && !fetch.ShouldUseBrowser(content.TextContent) {
		return content, nil
	}
	if err != nil {
		f.logger.Debug("http fetch failed, using browser", "url", url, "error", err)
	} else {
		f.logger.Debug("too little text over http, using browser", "url", url, "chars", len(content.TextContent))
	}
	return f.browser.FetchPage(ctx, url)
}
