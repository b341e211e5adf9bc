package crawling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/crawl-relay/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLauncher struct {
	launchErr error
	session   *fakeSession
	launches  int
}

func (l *fakeLauncher) Launch(_ context.Context) (fetch.Session, error) {
	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return l.session, nil
}

type fakeSession struct {
	page        *fetch.RenderedPage
	renderErr   error
	gotURL      string
	gotTimeout  time.Duration
	closeCalls  int
	renderCalls int
}

func (s *fakeSession) Render(_ context.Context, url string, timeout time.Duration) (*fetch.RenderedPage, error) {
	s.renderCalls++
	s.gotURL = url
	s.gotTimeout = timeout
	if s.renderErr != nil {
		return nil, s.renderErr
	}
	return s.page, nil
}

func (s *fakeSession) Close() error {
	s.closeCalls++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func manyItemsHTML(n int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, `<img src="/img/%d.png"><a href="/p/%d">link %d</a>`, i, i, i)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func TestExtractor_FetchPage_Success(t *testing.T) {
	session := &fakeSession{page: &fetch.RenderedPage{
		URL:      "https://example.com/final",
		Title:    "Example",
		HTML:     manyItemsHTML(12),
		Text:     "body text",
		Rendered: true,
	}}
	launcher := &fakeLauncher{session: session}
	ex := NewExtractor(launcher, 0, discardLogger())

	content, err := ex.FetchPage(context.Background(), "https://example.com/start")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/start", content.URL)
	assert.Equal(t, "Example", content.Title)
	assert.Equal(t, "body text", content.TextContent)
	require.Len(t, content.Images, 10)
	require.Len(t, content.Links, 10)
	assert.Equal(t, "https://example.com/img/0.png", content.Images[0].Src)
	assert.Equal(t, "https://example.com/img/9.png", content.Images[9].Src)
	assert.Equal(t, "link 9", content.Links[9].Text)

	assert.Equal(t, "https://example.com/start", session.gotURL)
	assert.Equal(t, fetch.DefaultNavigationTimeout, session.gotTimeout)
	assert.Equal(t, 1, session.closeCalls)
}

func TestExtractor_FetchPage_RenderErrorReleasesSession(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	session := &fakeSession{renderErr: cause}
	ex := NewExtractor(&fakeLauncher{session: session}, 5*time.Second, discardLogger())

	content, err := ex.FetchPage(context.Background(), "https://slow.test")
	require.Error(t, err)
	assert.Nil(t, content)

	var crawlErr *CrawlError
	require.ErrorAs(t, err, &crawlErr)
	assert.Equal(t, "https://slow.test", crawlErr.URL)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 5*time.Second, session.gotTimeout)
	assert.Equal(t, 1, session.closeCalls)
}

func TestExtractor_FetchPage_LaunchError(t *testing.T) {
	launcher := &fakeLauncher{launchErr: errors.New("chrome not found")}
	ex := NewExtractor(launcher, 0, discardLogger())

	_, err := ex.FetchPage(context.Background(), "https://example.com")
	require.Error(t, err)

	var crawlErr *CrawlError
	require.ErrorAs(t, err, &crawlErr)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Equal(t, 1, launcher.launches)
}

func TestExtractor_FetchPage_NoRetry(t *testing.T) {
	session := &fakeSession{renderErr: errors.New("boom")}
	launcher := &fakeLauncher{session: session}
	ex := NewExtractor(launcher, 0, discardLogger())

	_, err := ex.FetchPage(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Equal(t, 1, launcher.launches)
	assert.Equal(t, 1, session.renderCalls)
}

func TestFetchPageHTTP_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Plain</title>
			<meta name="description" content="desc"></head>
			<body><p>Server text</p><script>nope()</script><a href="/a">A</a></body></html>`))
	}))
	defer server.Close()

	content, err := FetchPageHTTP(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "Plain", content.Title)
	assert.Equal(t, "desc", content.Description)
	assert.Contains(t, content.TextContent, "Server text")
	assert.NotContains(t, content.TextContent, "nope")
	require.Len(t, content.Links, 1)
	assert.Equal(t, server.URL+"/a", content.Links[0].Href)
}

func TestFetchPageHTTP_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := FetchPageHTTP(context.Background(), server.URL, nil)
	require.Error(t, err)

	var crawlErr *CrawlError
	require.ErrorAs(t, err, &crawlErr)
	assert.Equal(t, server.URL, crawlErr.URL)
	assert.Contains(t, err.Error(), "404")
}
