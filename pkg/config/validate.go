package config

import (
	"fmt"
	"net/url"
	"strings"

	"linkprobe/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// SiteURL
	if c.SiteURL == "" {
		return warnings, fmt.Errorf("%w: site_url is required", utils.ErrConfigValidation)
	}
	parsed, parseErr := url.Parse(c.SiteURL)
	if parseErr != nil {
		return warnings, fmt.Errorf("%w: site_url '%s' is not a valid URL: %v", utils.ErrConfigValidation, c.SiteURL, parseErr)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return warnings, fmt.Errorf("%w: site_url must use http or https, got '%s'", utils.ErrConfigValidation, parsed.Scheme)
	}
	if parsed.Host == "" {
		return warnings, fmt.Errorf("%w: site_url '%s' has no host", utils.ErrConfigValidation, c.SiteURL)
	}

	// Seeds
	if len(c.Seeds) == 0 {
		return warnings, fmt.Errorf("%w: at least one seed is required", utils.ErrConfigValidation)
	}
	seenKeys := make(map[string]bool, len(c.Seeds))
	for i, seed := range c.Seeds {
		if seed.Path == "" {
			return warnings, fmt.Errorf("%w: seed %d has no path", utils.ErrConfigValidation, i)
		}
		if !strings.HasPrefix(seed.Path, "/") {
			return warnings, fmt.Errorf("%w: seed path '%s' must start with '/'", utils.ErrConfigValidation, seed.Path)
		}
		key := seed.Key()
		if seenKeys[key] {
			return warnings, fmt.Errorf("%w: duplicate seed key '%s' (give seeds sharing a path distinct names)", utils.ErrConfigValidation, key)
		}
		seenKeys[key] = true

		if seed.FormLogin != nil {
			if seed.FormLogin.Path == "" {
				return warnings, fmt.Errorf("%w: seed '%s' form_login has no path", utils.ErrConfigValidation, key)
			}
			if seed.BasicAuth != nil {
				warnings = append(warnings, fmt.Sprintf(
					"seed '%s' sets both basic_auth and form_login; both will be applied", key))
			}
		}
	}

	// Workers
	if c.Workers < 0 {
		warnings = append(warnings, fmt.Sprintf("workers cannot be negative, defaulting to %d", DefaultWorkers))
		c.Workers = DefaultWorkers
	}
	if c.Workers > 1 {
		warnings = append(warnings, fmt.Sprintf(
			"workers=%d: page parse order is no longer deterministic across runs", c.Workers))
	}

	// Limit
	if c.Limit < 0 {
		warnings = append(warnings, "limit cannot be negative, treating as unlimited")
		c.Limit = 0
	}

	// Verbosity
	if c.Verbosity < 0 || c.Verbosity > 4 {
		warnings = append(warnings, fmt.Sprintf("verbosity %d out of range 0-4, clamping", c.Verbosity))
		if c.Verbosity < 0 {
			c.Verbosity = 0
		} else {
			c.Verbosity = 4
		}
	}

	// MaxRequests
	if c.MaxRequests < 0 {
		warnings = append(warnings, "max_requests cannot be negative, defaulting to worker count")
		c.MaxRequests = 0
	}

	// OutputDir
	if c.OutputDir == "" {
		warnings = append(warnings, "output_dir is empty, defaulting to './crawl_out'")
		c.OutputDir = "./crawl_out"
	}

	// HTTP client ceilings
	if c.HTTPClient.Timeout <= 0 {
		c.HTTPClient.Timeout = DefaultTimeout
	}
	if c.HTTPClient.MaxRedirects <= 0 {
		c.HTTPClient.MaxRedirects = DefaultMaxRedirects
	}

	return warnings, nil
}
