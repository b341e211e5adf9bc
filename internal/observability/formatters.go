// Package observability provides metrics and formatted output for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jonathan/crawl-relay/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a bordered box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = clip(line, boxWidth-4)
	}

	body := titleStyle.Render(title) + "\n\n" + strings.Join(lines, "\n")
	fmt.Fprintln(p.out, boxStyle.Render(body))
}

// PrintPageContent outputs the crawled page metadata and a text preview.
func (p *Printer) PrintPageContent(content *types.PageContent) {
	if content == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title:       %s\n", content.Title)
	if content.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", content.Description)
	}
	fmt.Fprintf(&sb, "URL:         %s\n", content.URL)
	fmt.Fprintf(&sb, "Text:        %d characters\n", len([]rune(content.TextContent)))
	fmt.Fprintf(&sb, "Images:      %d\n", len(content.Images))
	fmt.Fprintf(&sb, "Links:       %d", len(content.Links))

	p.printBox("CRAWLED PAGE", sb.String())
}

// PrintImages outputs the first extracted images.
func (p *Printer) PrintImages(images []types.ImageRef) {
	if len(images) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(images), maxItemsToShow)
	for i := 0; i < count; i++ {
		alt := images[i].Alt
		if alt == "" {
			alt = dimStyle.Render("(no alt)")
		}
		fmt.Fprintf(&sb, "• %s\n  %s\n", alt, images[i].Src)
	}
	if len(images) > maxItemsToShow {
		fmt.Fprintf(&sb, "... and %d more", len(images)-maxItemsToShow)
	}

	p.printBox("IMAGES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintLinks outputs the first extracted links.
func (p *Printer) PrintLinks(links []types.LinkRef) {
	if len(links) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(links), maxItemsToShow)
	for i := 0; i < count; i++ {
		text := links[i].Text
		if text == "" {
			text = dimStyle.Render("(no text)")
		}
		fmt.Fprintf(&sb, "• %s\n  %s\n", text, links[i].Href)
	}
	if len(links) > maxItemsToShow {
		fmt.Fprintf(&sb, "... and %d more", len(links)-maxItemsToShow)
	}

	p.printBox("LINKS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCrawlError outputs a failed crawl.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintCrawlError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(p.out, errorStyle.Render("❌ Crawl failed:"), err)
}

func clip(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
