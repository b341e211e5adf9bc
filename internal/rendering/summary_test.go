package rendering

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jonathan/crawl-relay/internal/types"
	"github.com/stretchr/testify/assert"
)

func summarySegment(t *testing.T, msg string) string {
	t.Helper()
	const header = "📚 Content Summary:\n"
	start := strings.Index(msg, header)
	if start < 0 {
		t.Fatalf("summary header missing from %q", msg)
	}
	rest := msg[start+len(header):]
	end := strings.Index(rest, Ellipsis+"\n\n")
	if end < 0 {
		t.Fatalf("ellipsis missing from %q", rest)
	}
	return rest[:end]
}

func TestFormatCrawlerResults_Minimal(t *testing.T) {
	msg := FormatCrawlerResults(&types.PageContent{
		Title: "Example",
		URL:   "https://example.com",
	})

	expected := "📄 Example\n\n🔗 https://example.com\n\n📚 Content Summary:\n...\n\n"
	assert.Equal(t, expected, msg)
}

func TestFormatCrawlerResults_DescriptionOnlyWhenPresent(t *testing.T) {
	with := FormatCrawlerResults(&types.PageContent{Title: "T", Description: "About it", URL: "u"})
	without := FormatCrawlerResults(&types.PageContent{Title: "T", URL: "u"})

	assert.Contains(t, with, "📝 About it\n\n")
	assert.NotContains(t, without, "📝")
	assert.Less(t, strings.Index(with, "📄"), strings.Index(with, "📝"))
	assert.Less(t, strings.Index(with, "📝"), strings.Index(with, "🔗 u"))
}

func TestFormatCrawlerResults_SummaryBound(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "empty", text: "", want: ""},
		{name: "short", text: "hello", want: "hello"},
		{name: "exact", text: strings.Repeat("a", SummaryLimit), want: strings.Repeat("a", SummaryLimit)},
		{name: "long", text: strings.Repeat("b", SummaryLimit+500), want: strings.Repeat("b", SummaryLimit)},
		{name: "multibyte", text: strings.Repeat("é", SummaryLimit+1), want: strings.Repeat("é", SummaryLimit)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatCrawlerResults(&types.PageContent{Title: "T", URL: "u", TextContent: tt.text})
			assert.Equal(t, tt.want, summarySegment(t, msg))
		})
	}
}

func TestFormatCrawlerResults_ImageSection(t *testing.T) {
	content := &types.PageContent{
		Title: "T",
		URL:   "u",
		Images: []types.ImageRef{
			{Src: "1.png", Alt: "First"},
			{Src: "2.png"},
			{Src: "3.png", Alt: "Third"},
			{Src: "4.png", Alt: "Fourth"},
		},
	}

	msg := FormatCrawlerResults(content)

	assert.Contains(t, msg, "🖼 Found 4 images\n- First\n- Untitled image\n- Third\n\n")
	assert.NotContains(t, msg, "Fourth")
	assert.NotContains(t, msg, "links")
}

func TestFormatCrawlerResults_LinkSection(t *testing.T) {
	content := &types.PageContent{
		Title: "T",
		URL:   "u",
		Links: []types.LinkRef{
			{Href: "https://a.test", Text: "A"},
			{Href: "https://b.test"},
		},
	}

	msg := FormatCrawlerResults(content)

	assert.True(t, strings.HasSuffix(msg, "🔗 Found 2 links\n- A\n- https://b.test\n"))
	assert.NotContains(t, msg, "🖼")
}

func TestFormatCrawlerResults_AtMostThreeItems(t *testing.T) {
	content := &types.PageContent{Title: "T", URL: "u"}
	for i := 0; i < 10; i++ {
		content.Images = append(content.Images, types.ImageRef{Src: fmt.Sprint(i), Alt: fmt.Sprintf("img%d", i)})
		content.Links = append(content.Links, types.LinkRef{Href: fmt.Sprint(i), Text: fmt.Sprintf("link%d", i)})
	}

	msg := FormatCrawlerResults(content)

	assert.Contains(t, msg, "Found 10 images")
	assert.Contains(t, msg, "Found 10 links")
	assert.Equal(t, 6, strings.Count(msg, "\n- "))
	assert.NotContains(t, msg, "img3")
	assert.NotContains(t, msg, "link3")
}

func TestFormatCrawlerResults_Deterministic(t *testing.T) {
	content := &types.PageContent{
		Title:       "T",
		URL:         "u",
		TextContent: "body",
		Images:      []types.ImageRef{{Src: "a"}},
		Links:       []types.LinkRef{{Href: "b"}},
	}
	assert.Equal(t, FormatCrawlerResults(content), FormatCrawlerResults(content))
}

func TestFormatCrawlError(t *testing.T) {
	msg := FormatCrawlError(errors.New("Error crawling x: timeout"))
	assert.Equal(t, "❌ Could not crawl page: Error crawling x: timeout", msg)
}
