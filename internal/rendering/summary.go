// Package rendering turns crawl results into chat-friendly messages.
package rendering

import (
	"fmt"
	"strings"

	"github.com/jonathan/crawl-relay/internal/types"
)

const (
	// SummaryLimit is the number of text characters kept in the content summary.
	SummaryLimit = 2000
	// PreviewItems is the number of images or links itemized per section.
	PreviewItems = 3
	// Ellipsis always follows the content summary.
	Ellipsis = "..."
	// UntitledImage labels images without alt text.
	UntitledImage = "Untitled image"
)

// FormatCrawlerResults renders page content as a bounded chat message.
func FormatCrawlerResults(content *types.PageContent) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📄 %s\n\n", content.Title)

	if content.Description != "" {
		fmt.Fprintf(&sb, "📝 %s\n\n", content.Description)
	}

	fmt.Fprintf(&sb, "🔗 %s\n\n", content.URL)

	fmt.Fprintf(&sb, "📚 Content Summary:\n%s%s\n\n", truncateRunes(content.TextContent, SummaryLimit), Ellipsis)

	if len(content.Images) > 0 {
		fmt.Fprintf(&sb, "🖼 Found %d images\n", len(content.Images))
		for _, img := range content.Images[:min(PreviewItems, len(content.Images))] {
			label := img.Alt
			if label == "" {
				label = UntitledImage
			}
			fmt.Fprintf(&sb, "- %s\n", label)
		}
		sb.WriteString("\n")
	}

	if len(content.Links) > 0 {
		fmt.Fprintf(&sb, "🔗 Found %d links\n", len(content.Links))
		for _, link := range content.Links[:min(PreviewItems, len(content.Links))] {
			label := link.Text
			if label == "" {
				label = link.Href
			}
			fmt.Fprintf(&sb, "- %s\n", label)
		}
	}

	return sb.String()
}

// FormatCrawlError renders an extraction failure for the end user.
func FormatCrawlError(err error) string {
	return "❌ Could not crawl page: " + err.Error()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
