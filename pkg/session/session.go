package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"linkprobe/pkg/config"
	"linkprobe/pkg/fetch"
	"linkprobe/pkg/models"
	"linkprobe/pkg/utils"
)

// Session owns one seed's authenticated browsing context: cookie jar,
// bounded redirect policy and request timeouts. All internal fetches for a
// seed go through its session so auth state accumulates in one place.
type Session struct {
	client      *http.Client
	site        *url.URL
	basic       *config.BasicAuth
	userAgent   string
	maxBodySize int64
	log         *logrus.Entry
}

// New creates a Session with a fresh cookie jar and a client built from cfg
func New(site *url.URL, cfg config.HTTPClientConfig, basic *config.BasicAuth, userAgent string, maxBodySize int64, logger *logrus.Entry) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cookie jar: %w", utils.ErrSeedSetup, err)
	}
	client := fetch.NewClient(cfg, logger)
	client.Jar = jar

	return FromClient(site, client, basic, userAgent, maxBodySize, logger), nil
}

// FromClient wraps a pre-built HTTP client (custom transports, test doubles)
// in a Session
func FromClient(site *url.URL, client *http.Client, basic *config.BasicAuth, userAgent string, maxBodySize int64, logger *logrus.Entry) *Session {
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	if maxBodySize <= 0 {
		maxBodySize = config.DefaultMaxPageSizeBytes
	}
	return &Session{
		client:      client,
		site:        site,
		basic:       basic,
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
		log:         logger,
	}
}

// Fetch issues a GET for a site-relative path through the session.
// Transport-level failures are returned as errors; HTTP error statuses are
// returned as responses. The Doc field is populated only when the body
// parses as HTML with at least one element.
func (s *Session) Fetch(ctx context.Context, path string) (*models.PageResponse, error) {
	target, err := s.site.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving URL for path '%s': %w", utils.ErrParsing, path, err)
	}
	return s.fetchURL(ctx, http.MethodGet, target.String(), "", nil)
}

// fetchURL performs one request and reads the full (size-capped) body
func (s *Session) fetchURL(ctx context.Context, method, rawURL, contentType string, body io.Reader) (*models.PageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %w", utils.ErrRequestCreation, rawURL, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.basic != nil {
		req.SetBasicAuth(s.basic.Username, s.basic.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrTransport, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, s.maxBodySize+1)
	bodyBytes, readErr := io.ReadAll(limited)
	if readErr != nil {
		return nil, fmt.Errorf("%w: reading body from '%s': %w", utils.ErrResponseBodyRead, rawURL, readErr)
	}
	if int64(len(bodyBytes)) > s.maxBodySize {
		return nil, fmt.Errorf("%w: page '%s' exceeds max size (%d bytes)", utils.ErrResponseBodyRead, rawURL, s.maxBodySize)
	}

	page := &models.PageResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       bodyBytes,
		FinalURL:   resp.Request.URL,
	}
	page.Doc = parseDocument(bodyBytes)
	return page, nil
}

// parseDocument returns a queryable document when the body is plausibly HTML
// with at least one element, nil otherwise. The guards rule out binary
// content misreported as HTML.
func parseDocument(body []byte) *goquery.Document {
	if len(body) == 0 || !utf8.Valid(body) || !bytes.ContainsRune(body, '<') {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	if doc.Find("*").Length() == 0 {
		return nil
	}
	return doc
}
