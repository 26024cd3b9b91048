package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	yaml := `
site_url: https://example.com/
output_dir: ./out
workers: 2
limit: 50
verbosity: 3
probe_timeout: 5000000000 # 5s in nanoseconds; yaml decodes durations as int64
seeds:
  - path: /
  - path: /docs/
    name: docs
    basic_auth:
      username: alice
      password: s3cret
  - path: /account/
    form_login:
      path: /login
      submit: Sign in
      fields:
        username: alice
        password: s3cret
http_client_settings:
  timeout: 20000000000
  max_redirects: 3
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/", cfg.SiteURL)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 50, cfg.Limit)
	assert.Equal(t, 3, cfg.Verbosity)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 20*time.Second, cfg.HTTPClient.Timeout)
	assert.Equal(t, 3, cfg.HTTPClient.MaxRedirects)

	require.Len(t, cfg.Seeds, 3)
	assert.Equal(t, "/", cfg.Seeds[0].Key())
	assert.Equal(t, "docs", cfg.Seeds[1].Key())
	require.NotNil(t, cfg.Seeds[1].BasicAuth)
	assert.Equal(t, "alice", cfg.Seeds[1].BasicAuth.Username)
	require.NotNil(t, cfg.Seeds[2].FormLogin)
	assert.Equal(t, "/login", cfg.Seeds[2].FormLogin.Path)
	assert.Equal(t, "Sign in", cfg.Seeds[2].FormLogin.Submit)
	assert.Equal(t, "s3cret", cfg.Seeds[2].FormLogin.Fields["password"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site_url: [unclosed"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
