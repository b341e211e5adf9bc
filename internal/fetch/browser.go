// Package fetch - browser.go provides headless browser rendering through chromedp.
package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// MinContentLength is the minimum extracted text length to consider HTTP fetch successful.
// If content is shorter, we should fall back to browser rendering.
const MinContentLength = 500

// DefaultNavigationTimeout bounds page navigation until the load event fires.
const DefaultNavigationTimeout = 30 * time.Second

// ShouldUseBrowser returns true if the extracted text is too short,
// indicating the page is likely a JavaScript-rendered SPA.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// RenderedPage is a page snapshot taken after the load event and after
// script and style elements were removed from the live document.
type RenderedPage struct {
	URL      string // final location after redirects
	Title    string
	HTML     string
	Text     string // body innerText
	Rendered bool   // set when a browser produced the snapshot
}

// Launcher acquires an isolated browser session.
// A failed Launch must release anything it partially acquired.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is an exclusive browser context. Close must be called exactly once
// the caller is done with it; extra calls are no-ops.
type Session interface {
	Render(ctx context.Context, url string, timeout time.Duration) (*RenderedPage, error)
	Close() error
}

// stripScriptsJS removes script and style nodes and reports how many were removed.
const stripScriptsJS = `(() => {
	const nodes = document.querySelectorAll('script, style');
	nodes.forEach(n => n.remove());
	return nodes.length;
})()`

const bodyTextJS = `document.body ? document.body.innerText : ""`

// ChromeLauncher starts a fresh headless Chrome per session.
// Requires Chrome/Chromium to be installed on the system.
type ChromeLauncher struct {
	ExecPath  string // optional path to the browser binary
	UserAgent string
}

// NewChromeLauncher creates a launcher with default options.
func NewChromeLauncher() *ChromeLauncher {
	return &ChromeLauncher{UserAgent: DefaultUserAgent}
}

// Launch starts a browser process with its own temporary profile.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}
	if l.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &chromeSession{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}, nil
}

type chromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

// Render navigates to url, waits for the load event and snapshots the document.
func (s *chromeSession) Render(ctx context.Context, url string, timeout time.Duration) (*RenderedPage, error) {
	if timeout <= 0 {
		timeout = DefaultNavigationTimeout
	}

	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	page := &RenderedPage{Rendered: true}
	var removed int

	// Navigate blocks until the frame fires its load event.
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Evaluate(stripScriptsJS, &removed),
		chromedp.Evaluate(bodyTextJS, &page.Text),
		chromedp.Title(&page.Title),
		chromedp.Location(&page.URL),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &Error{URL: url, Message: "browser rendering failed", Cause: err}
	}

	return page, nil
}

// Close shuts the browser down and releases the allocator.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancel()
		s.allocCancel()
	})
	return s.closeErr
}
