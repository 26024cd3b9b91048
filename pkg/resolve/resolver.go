package resolve

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"linkprobe/pkg/models"
	"linkprobe/pkg/utils"
)

// Resolver turns raw attribute values found in page elements into classified
// absolute References for one site.
type Resolver struct {
	site       *url.URL
	sitePrefix string // Site URL with trailing slash; internal references live under it
	siteRoot   string // Site URL without the trailing slash (the bare root form)
}

// New creates a Resolver for the given site URL
func New(site *url.URL) *Resolver {
	prefix := site.String()
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Resolver{
		site:       site,
		sitePrefix: prefix,
		siteRoot:   strings.TrimSuffix(prefix, "/"),
	}
}

// SitePrefix returns the normalized site URL used for classification
func (r *Resolver) SitePrefix() string {
	return r.sitePrefix
}

// Resolve builds a Reference from the raw attribute value of a tag, resolved
// against the base URL of the page it was found on.
//
// Only the a, link and script tag kinds are supported; any other kind is a
// contract violation by the caller and panics. A nil Reference with nil error
// means the value was empty and nothing was referenced.
func (r *Resolver) Resolve(tag models.Tag, raw string, base *url.URL) (*models.Reference, error) {
	switch tag {
	case models.TagAnchor, models.TagLink, models.TagScript:
	default:
		panic(fmt.Sprintf("resolve: unsupported tag kind %q", tag))
	}

	// Fragments never affect reachability of anchor targets
	if tag == models.TagAnchor {
		if i := strings.Index(raw, "#"); i >= 0 {
			raw = raw[:i]
		}
	}
	if raw == "" {
		return nil, nil
	}

	abs, err := base.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving URL '%s' against '%s': %w", utils.ErrParsing, raw, base, err)
	}

	ref := &models.Reference{
		Tag:       tag,
		AbsURL:    abs.String(),
		Hyperlink: abs.Scheme == "http" || abs.Scheme == "https",
	}
	// Internal means under the site URL's slash-terminated prefix. The bare
	// root form is the one internal URL without that prefix; a prefix check
	// against the slash-less root would swallow sibling paths (/docs vs
	// /docs-v2) and even foreign hosts sharing the string prefix.
	switch {
	case ref.AbsURL == r.siteRoot:
		ref.Internal = true
		ref.AbsPath = "/"
	case strings.HasPrefix(ref.AbsURL, r.sitePrefix):
		ref.Internal = true
		ref.AbsPath = ref.AbsURL[len(r.siteRoot):]
	}
	return ref, nil
}

// FromSelection extracts the tag kind and raw attribute value from a matched
// element and resolves it. Selections other than a/link/script panic, same as
// Resolve.
func (r *Resolver) FromSelection(sel *goquery.Selection, base *url.URL) (*models.Reference, error) {
	tag := models.Tag(goquery.NodeName(sel))
	attr := tag.Attr()
	if attr == "" {
		panic(fmt.Sprintf("resolve: unsupported tag kind %q", tag))
	}
	raw, ok := sel.Attr(attr)
	if !ok {
		return nil, nil
	}
	return r.Resolve(tag, strings.TrimSpace(raw), base)
}
