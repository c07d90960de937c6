package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://delhihighcourt.nic.in/case-status", cfg.Portal.SearchURL)
	assert.Equal(t, 20*time.Second, cfg.Browser.LaunchTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2, cfg.Scraper.MaxSessions)
	assert.True(t, cfg.Browser.Headless)
	assert.Empty(t, cfg.DatabaseURL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "casefetch.yaml")
	content := `
portal:
  search_url: https://portal.test/search
browser:
  launch_timeout: 5s
scraper:
  max_sessions: 4
database_url: postgres://localhost/cases
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.test/search", cfg.Portal.SearchURL)
	assert.Equal(t, 5*time.Second, cfg.Browser.LaunchTimeout)
	assert.Equal(t, 4, cfg.Scraper.MaxSessions)
	assert.Equal(t, "postgres://localhost/cases", cfg.DatabaseURL)
	// Unset keys keep defaults
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CASEFETCH_HTTP_TIMEOUT", "3s")
	t.Setenv("CASEFETCH_SCRAPER_MAX_SESSIONS", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent-is-error.yaml"))
	require.Error(t, err)
	assert.Nil(t, cfg)

	dir := t.TempDir()
	path := filepath.Join(dir, "casefetch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 7, cfg.Scraper.MaxSessions)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(_ *Config) {}, ""},
		{"relative search url", func(c *Config) { c.Portal.SearchURL = "/case-status" }, "portal.search_url"},
		{"bad remote url", func(c *Config) { c.Browser.RemoteURL = "localhost" }, "browser.remote_url"},
		{"zero launch timeout", func(c *Config) { c.Browser.LaunchTimeout = 0 }, "browser.launch_timeout"},
		{"zero sessions", func(c *Config) { c.Scraper.MaxSessions = 0 }, "scraper.max_sessions"},
		{"negative http timeout", func(c *Config) { c.HTTP.Timeout = -time.Second }, "http.timeout"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"missing selectors file", func(c *Config) { c.SelectorsFile = "/nonexistent/selectors.json" }, "selectors file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
