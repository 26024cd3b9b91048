package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SeedConfig describes one independently-crawled section of the site
type SeedConfig struct {
	Path      string     `yaml:"path"`
	Name      string     `yaml:"name,omitempty"` // Disambiguates seeds sharing a path
	BasicAuth *BasicAuth `yaml:"basic_auth,omitempty"`
	FormLogin *FormLogin `yaml:"form_login,omitempty"`
}

// Key returns the identifier for this seed's results: the name if set,
// otherwise the path
func (s SeedConfig) Key() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

// BasicAuth holds credentials applied to every session request
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// FormLogin describes a login form submission performed before a seed's crawl
type FormLogin struct {
	Path   string            `yaml:"path"`   // Login page path, relative to the site root
	Submit string            `yaml:"submit"` // Marker identifying the form's submit button
	Fields map[string]string `yaml:"fields"` // Field name -> value overrides
}

// AppConfig holds the global application configuration
type AppConfig struct {
	SiteURL          string           `yaml:"site_url"`
	Seeds            []SeedConfig     `yaml:"seeds"`
	OutputDir        string           `yaml:"output_dir,omitempty"`
	Workers          int              `yaml:"workers,omitempty"`   // Per-seed worker pool size; 1 = fully deterministic FIFO
	Limit            int              `yaml:"limit,omitempty"`     // Max pages parsed per seed; 0 = unlimited
	Verbosity        int              `yaml:"verbosity,omitempty"` // 0-4, see VerbosityLevel
	MaxRequests      int              `yaml:"max_requests,omitempty"` // Global in-flight request cap
	UserAgent        string           `yaml:"user_agent,omitempty"`
	MaxPageSizeBytes int64            `yaml:"max_page_size_bytes,omitempty"`
	ProbeTimeout     time.Duration    `yaml:"probe_timeout,omitempty"` // Budget for one external reachability GET
	HTTPClient       HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for session and probe HTTP clients
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`       // Overall request timeout
	MaxRedirects          int           `yaml:"max_redirects,omitempty"` // Redirect hop cap; default 5
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// Defaults applied where the config leaves a value unset
const (
	DefaultWorkers          = 1
	DefaultMaxRedirects     = 5
	DefaultUserAgent        = "linkprobe/1.0"
	DefaultMaxPageSizeBytes = 10 << 20
	DefaultTimeout          = 30 * time.Second
	DefaultProbeTimeout     = 10 * time.Second
)

// Load reads and parses a YAML config file
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// EffectiveWorkers returns the worker pool size with the default applied
func (c *AppConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return DefaultWorkers
}

// EffectiveMaxRequests returns the global request cap, defaulting to the
// worker count so the cap never throttles a default configuration
func (c *AppConfig) EffectiveMaxRequests() int {
	if c.MaxRequests > 0 {
		return c.MaxRequests
	}
	return c.EffectiveWorkers()
}

// EffectiveUserAgent returns the configured or default User-Agent
func (c *AppConfig) EffectiveUserAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return DefaultUserAgent
}

// EffectiveMaxPageSize returns the page size ceiling in bytes
func (c *AppConfig) EffectiveMaxPageSize() int64 {
	if c.MaxPageSizeBytes > 0 {
		return c.MaxPageSizeBytes
	}
	return DefaultMaxPageSizeBytes
}

// EffectiveProbeTimeout returns the external probe budget
func (c *AppConfig) EffectiveProbeTimeout() time.Duration {
	if c.ProbeTimeout > 0 {
		return c.ProbeTimeout
	}
	return DefaultProbeTimeout
}

// VerbosityLevel maps the 0-4 verbosity scale onto logrus levels:
// 0=error, 1=warn, 2=info (seed start/finish), 3=debug (page events),
// 4=trace (per-reference outcomes)
func VerbosityLevel(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.ErrorLevel
	case v == 1:
		return logrus.WarnLevel
	case v == 2:
		return logrus.InfoLevel
	case v == 3:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}
