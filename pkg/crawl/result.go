package crawl

import (
	"sort"

	"linkprobe/pkg/models"
)

// SeedResult holds everything accumulated during one seed's crawl: the final
// reference set, the captured files in capture order, and the terminal state.
// This is the artifact a caller diffs between two crawl runs.
type SeedResult struct {
	Seed  string           // Seed key
	Path  string           // Entry path
	State models.SeedState

	// Links is keyed by absolute URL; each reference carries its probe
	// outcome and every page path it was found on.
	Links map[string]*models.Reference

	// Files are the captured internal bodies, compressed, in capture order.
	Files []*models.File

	// PagesParsed counts pages whose links were extracted.
	PagesParsed int

	// Err records a seed-level failure (session setup, login, entry fetch,
	// hook error). Per-reference failures live on the references themselves.
	Err error
}

// SortedLinks returns the references ordered by absolute URL for
// deterministic reporting
func (r *SeedResult) SortedLinks() []*models.Reference {
	refs := make([]*models.Reference, 0, len(r.Links))
	for _, ref := range r.Links {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].AbsURL < refs[j].AbsURL })
	return refs
}

// File returns the captured file for a path, or nil
func (r *SeedResult) File(path string) *models.File {
	for _, f := range r.Files {
		if f.Path == path {
			return f
		}
	}
	return nil
}

// Result is the outcome of one crawl run across all seeds
type Result struct {
	RunID string
	Site  string
	Seeds []*SeedResult
}

// Seed returns the result for a seed key, or nil
func (r *Result) Seed(key string) *SeedResult {
	for _, s := range r.Seeds {
		if s.Seed == key {
			return s
		}
	}
	return nil
}

// Failed reports whether any seed ended with a seed-level error
func (r *Result) Failed() bool {
	for _, s := range r.Seeds {
		if s.Err != nil {
			return true
		}
	}
	return false
}
