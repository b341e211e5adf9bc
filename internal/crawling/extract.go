package crawling

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/crawl-relay/internal/fetch"
	"github.com/jonathan/crawl-relay/internal/types"
)

// ExtractContent derives PageContent from a rendered page.
// Images and links are returned in document order and are not capped here.
// Body text is read from the markup only for pages not rendered by a browser.
func ExtractContent(page *fetch.RenderedPage) (*types.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	// The browser already stripped these; HTML fetched over plain HTTP still has them.
	doc.Find("script, style").Remove()

	base := documentBase(doc, page.URL)

	content := &types.PageContent{
		Title:       page.Title,
		URL:         page.URL,
		TextContent: strings.TrimSpace(page.Text),
		Images:      []types.ImageRef{},
		Links:       []types.LinkRef{},
	}

	if content.Title == "" {
		content.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	// A browser's innerText omits hidden and noscript content, so an empty
	// rendered text stays empty.
	if content.TextContent == "" && !page.Rendered {
		content.TextContent = strings.TrimSpace(doc.Find("body").Text())
	}

	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		content.Description = desc
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, _ := s.Attr("alt")
		content.Images = append(content.Images, types.ImageRef{
			Src: resolve(base, src),
			Alt: alt,
		})
	})

	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		content.Links = append(content.Links, types.LinkRef{
			Href: resolve(base, href),
			Text: strings.TrimSpace(s.Text()),
		})
	})

	return content, nil
}

// documentBase returns the URL relative references resolve against,
// honouring a <base href> element.
func documentBase(doc *goquery.Document, pageURL string) *url.URL {
	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme == "" {
		base = nil
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err == nil {
			if base == nil {
				if ref.IsAbs() {
					return ref
				}
				return nil
			}
			return base.ResolveReference(ref)
		}
	}

	return base
}

// resolve makes ref absolute against base. Unparseable references and
// references without a usable base are returned unchanged.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
