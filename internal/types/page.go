// Package types provides type definitions for structured data shared across the relay.
package types

// MaxPageItems caps the images and links returned for a crawled page.
const MaxPageItems = 10

// PageContent is the structured result of crawling one URL.
type PageContent struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	TextContent string     `json:"text_content"`
	Images      []ImageRef `json:"images"`
	Links       []LinkRef  `json:"links"`
}

// ImageRef is an image found on a crawled page. Alt may be empty.
type ImageRef struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// LinkRef is an anchor found on a crawled page. Text is trimmed and may be empty.
type LinkRef struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Truncate caps Images and Links to the first MaxPageItems entries in document order.
func (p *PageContent) Truncate() {
	if len(p.Images) > MaxPageItems {
		p.Images = p.Images[:MaxPageItems]
	}
	if len(p.Links) > MaxPageItems {
		p.Links = p.Links[:MaxPageItems]
	}
}
