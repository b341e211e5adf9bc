package crawling

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonathan/crawl-relay/internal/fetch"
	"github.com/jonathan/crawl-relay/internal/types"
)

// Extractor loads pages in an exclusive browser session and extracts their content.
type Extractor struct {
	launcher fetch.Launcher
	timeout  time.Duration
	logger   *slog.Logger
}

// NewExtractor creates an Extractor. A zero timeout uses fetch.DefaultNavigationTimeout.
func NewExtractor(launcher fetch.Launcher, timeout time.Duration, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = fetch.DefaultNavigationTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{launcher: launcher, timeout: timeout, logger: logger}
}

// FetchPage crawls url once. Every failure is returned as *CrawlError.
// The browser session is released on every exit path.
func (e *Extractor) FetchPage(ctx context.Context, url string) (*types.PageContent, error) {
	e.logger.Info("crawling page", "url", url)

	session, err := e.launcher.Launch(ctx)
	if err != nil {
		return nil, &CrawlError{URL: url, Cause: err}
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			e.logger.Warn("failed to close browser session", "url", url, "error", closeErr)
		}
	}()

	page, err := session.Render(ctx, url, e.timeout)
	if err != nil {
		return nil, &CrawlError{URL: url, Cause: err}
	}

	content, err := ExtractContent(page)
	if err != nil {
		return nil, &CrawlError{URL: url, Cause: err}
	}

	// The original request URL is reported, not the post-redirect location.
	content.URL = url
	content.Truncate()

	return content, nil
}

// FetchPageHTTP fetches url over plain HTTP without a browser. Text is read
// from the parsed document since no script runs.
func FetchPageHTTP(ctx context.Context, url string, opts *fetch.Options) (*types.PageContent, error) {
	result, err := fetch.URL(ctx, url, opts)
	if err != nil {
		return nil, &CrawlError{URL: url, Cause: err}
	}

	content, err := ExtractContent(&fetch.RenderedPage{URL: url, HTML: result.HTML})
	if err != nil {
		return nil, &CrawlError{URL: url, Cause: err}
	}
	content.Truncate()

	return content, nil
}
