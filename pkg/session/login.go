package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"linkprobe/pkg/config"
	"linkprobe/pkg/utils"
)

// Login performs a form login: fetches the login page, locates the form by
// its submit marker, merges pre-filled inputs with the configured field map
// and posts the result. Cookies set by the exchange stay in the session jar.
func (s *Session) Login(ctx context.Context, cfg *config.FormLogin) error {
	loginLog := s.log.WithField("login_path", cfg.Path)
	loginLog.Debug("Fetching login page...")

	page, err := s.Fetch(ctx, cfg.Path)
	if err != nil {
		return fmt.Errorf("%w: fetching login page: %w", utils.ErrLoginFailed, err)
	}
	if page.StatusCode != 200 {
		return fmt.Errorf("%w: login page '%s' returned status %d", utils.ErrLoginFailed, cfg.Path, page.StatusCode)
	}
	if page.Doc == nil {
		return fmt.Errorf("%w: login page '%s' is not parseable HTML", utils.ErrLoginFailed, cfg.Path)
	}

	form := findForm(page.Doc, cfg.Submit)
	if form == nil {
		return fmt.Errorf("%w: no form matching submit marker '%s' on '%s'", utils.ErrLoginFailed, cfg.Submit, cfg.Path)
	}

	// Start from the form's pre-filled inputs (hidden tokens etc), then apply
	// the configured fields on top
	values := url.Values{}
	form.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		name, _ := input.Attr("name")
		typ, _ := input.Attr("type")
		typ = strings.ToLower(typ)
		if typ == "checkbox" || typ == "radio" {
			if _, checked := input.Attr("checked"); !checked {
				return
			}
		}
		value, _ := input.Attr("value")
		values.Set(name, value)
	})
	for name, value := range cfg.Fields {
		values.Set(name, value)
	}

	action, _ := form.Attr("action")
	target := page.FinalURL
	if action != "" {
		resolved, resolveErr := page.FinalURL.Parse(action)
		if resolveErr != nil {
			return fmt.Errorf("%w: resolving form action '%s': %w", utils.ErrLoginFailed, action, resolveErr)
		}
		target = resolved
	}

	loginLog.WithField("action", target.String()).Debug("Submitting login form...")
	resp, err := s.fetchURL(ctx, "POST", target.String(),
		"application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("%w: submitting form: %w", utils.ErrLoginFailed, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: form submission returned status %d", utils.ErrLoginFailed, resp.StatusCode)
	}

	loginLog.WithField("status", resp.StatusCode).Info("Form login complete")
	return nil
}

// findForm selects the form whose submit button matches the marker: button
// text, the value/name/id of a submit input, or the form's own id/name.
// An empty marker selects the first form.
func findForm(doc *goquery.Document, marker string) *goquery.Selection {
	var match *goquery.Selection
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		if marker == "" {
			match = form
			return false
		}
		if attrEquals(form, marker, "id", "name") {
			match = form
			return false
		}
		found := false
		form.Find(`button, input[type="submit"]`).EachWithBreak(func(_ int, btn *goquery.Selection) bool {
			if attrEquals(btn, marker, "value", "name", "id") ||
				strings.EqualFold(strings.TrimSpace(btn.Text()), marker) {
				found = true
				return false
			}
			return true
		})
		if found {
			match = form
			return false
		}
		return true
	})
	return match
}

// attrEquals reports whether any of the named attributes equals want
func attrEquals(sel *goquery.Selection, want string, attrs ...string) bool {
	for _, attr := range attrs {
		if v, ok := sel.Attr(attr); ok && v == want {
			return true
		}
	}
	return false
}
