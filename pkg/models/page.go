package models

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageResponse is the outcome of one fetch through a seed session
type PageResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   *url.URL // URL after any redirects

	// Doc is non-nil only when Body parsed as HTML with at least one element
	Doc *goquery.Document
}

// ContentType returns the response Content-Type header value
func (p *PageResponse) ContentType() string {
	return p.Header.Get("Content-Type")
}

// IsHTML reports whether the response declares a text/html content type.
// Only text/html bodies are captured and traversed.
func (p *PageResponse) IsHTML() bool {
	return strings.HasPrefix(strings.ToLower(p.ContentType()), "text/html")
}

// Page is one fetched-but-not-yet-parsed internal page on a seed's worklist,
// keyed by its absolute path
type Page struct {
	Path string // Absolute path relative to the site root
	URL  string // Absolute URL of the page
	Doc  *goquery.Document
}

// SeedState tracks a seed's traversal lifecycle
type SeedState string

const (
	SeedStateNotStarted SeedState = "not_started"
	SeedStateRunning    SeedState = "running"
	SeedStateFinished   SeedState = "finished"
)

// String implements fmt.Stringer for logging
func (s SeedState) String() string {
	if s == "" {
		return string(SeedStateNotStarted)
	}
	return string(s)
}
