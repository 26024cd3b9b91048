package crawl

import (
	"linkprobe/pkg/config"
	"linkprobe/pkg/session"
)

// Seed is the immutable configuration for one independently-crawled section
// of the site. Accumulated state lives in the SeedResult the engine produces,
// never on the Seed itself.
type Seed struct {
	Path string // Entry point, relative to the site root
	Name string // Optional; disambiguates seeds sharing a path

	Ignore IgnoreFunc // Optional; excludes matching references from seed state
	Hooks  Hooks      // Optional setup/teardown callbacks

	// Authentication: either credentials/login config consumed when the
	// engine builds the session, or a pre-built Session which takes
	// precedence over both.
	BasicAuth *config.BasicAuth
	FormLogin *config.FormLogin
	Session   *session.Session
}

// Key returns the identifier under which this seed's results are reported
func (s Seed) Key() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

// SeedsFromConfig converts config entries into engine seeds. Hooks and
// ignore predicates are code, not config; callers attach them afterwards.
func SeedsFromConfig(cfgs []config.SeedConfig) []Seed {
	seeds := make([]Seed, 0, len(cfgs))
	for _, c := range cfgs {
		seeds = append(seeds, Seed{
			Path:      c.Path,
			Name:      c.Name,
			BasicAuth: c.BasicAuth,
			FormLogin: c.FormLogin,
		})
	}
	return seeds
}
