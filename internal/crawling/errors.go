// Package crawling extracts structured content from web pages for chat summaries.
package crawling

import "fmt"

// CrawlError represents any navigation or extraction failure for a URL.
type CrawlError struct {
	URL   string
	Cause error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Error crawling %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("Error crawling %s", e.URL)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}
