// Package config provides configuration loading and validation for the case fetcher.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CASEFETCH_PORTAL_SEARCH_URL.
const EnvPrefix = "CASEFETCH"

// DefaultUserAgent mimics a desktop Chrome so the portal serves its normal markup.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Config is the full runtime configuration. Every field has a default.
type Config struct {
	Portal        PortalConfig  `mapstructure:"portal"`
	Browser       BrowserConfig `mapstructure:"browser"`
	Scraper       ScraperConfig `mapstructure:"scraper"`
	Form          FormConfig    `mapstructure:"form"`
	HTTP          HTTPConfig    `mapstructure:"http"`
	Server        ServerConfig  `mapstructure:"server"`
	DatabaseURL   string        `mapstructure:"database_url"`   // PostgreSQL URL; empty disables persistence
	SelectorsFile string        `mapstructure:"selectors_file"` // Optional selector-set override
}

// PortalConfig locates the case status portal.
type PortalConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	SearchURL string `mapstructure:"search_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// BrowserConfig controls driver acquisition.
type BrowserConfig struct {
	CacheDir      string        `mapstructure:"cache_dir"`
	BinaryPath    string        `mapstructure:"binary_path"`
	RemoteURL     string        `mapstructure:"remote_url"`
	Headless      bool          `mapstructure:"headless"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout"`
}

// ScraperConfig bounds the orchestrator.
type ScraperConfig struct {
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout"`
	MaxSessions     int           `mapstructure:"max_sessions"`
}

// FormConfig bounds form submission.
type FormConfig struct {
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
}

// HTTPConfig bounds the HTTP-only path.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures the REST API.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	SearchRate     float64       `mapstructure:"search_rate"`  // searches per second per client
	SearchBurst    int           `mapstructure:"search_burst"` // bucket capacity per client
	OrdersPerPage  int           `mapstructure:"orders_per_page"`
	CasesPerPage   int           `mapstructure:"cases_per_page"`
	ShutdownPeriod time.Duration `mapstructure:"shutdown_period"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("portal.base_url", "https://delhihighcourt.nic.in/")
	v.SetDefault("portal.search_url", "https://delhihighcourt.nic.in/case-status")
	v.SetDefault("portal.user_agent", DefaultUserAgent)

	v.SetDefault("browser.cache_dir", defaultCacheDir())
	v.SetDefault("browser.binary_path", "")
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.launch_timeout", 20*time.Second)

	v.SetDefault("scraper.navigate_timeout", 15*time.Second)
	v.SetDefault("scraper.max_sessions", 2)

	v.SetDefault("form.settle_timeout", 10*time.Second)

	v.SetDefault("http.timeout", 15*time.Second)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.search_rate", 0.2)
	v.SetDefault("server.search_burst", 5)
	v.SetDefault("server.orders_per_page", 10)
	v.SetDefault("server.cases_per_page", 10)
	v.SetDefault("server.shutdown_period", 30*time.Second)

	v.SetDefault("database_url", "")
	v.SetDefault("selectors_file", "")
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "casefetch")
	}
	return filepath.Join(os.TempDir(), "casefetch")
}

// Default returns the built-in configuration without consulting files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("default config does not decode: %v", err))
	}
	return &cfg
}

// Load reads configuration from an optional file plus CASEFETCH_* environment
// variables. With an empty path it looks for casefetch.{yaml,json} in the
// working directory and in ~/.config/casefetch; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("casefetch")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "casefetch"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if err := validateURL("portal.search_url", c.Portal.SearchURL); err != nil {
		return err
	}
	if c.Portal.BaseURL != "" {
		if err := validateURL("portal.base_url", c.Portal.BaseURL); err != nil {
			return err
		}
	}
	if c.Browser.RemoteURL != "" {
		if err := validateURL("browser.remote_url", c.Browser.RemoteURL); err != nil {
			return err
		}
	}

	if c.Browser.LaunchTimeout <= 0 {
		return fmt.Errorf("config error: 'browser.launch_timeout' must be positive")
	}
	if c.Scraper.NavigateTimeout <= 0 {
		return fmt.Errorf("config error: 'scraper.navigate_timeout' must be positive")
	}
	if c.Form.SettleTimeout <= 0 {
		return fmt.Errorf("config error: 'form.settle_timeout' must be positive")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("config error: 'http.timeout' must be positive")
	}
	if c.Scraper.MaxSessions < 1 {
		return fmt.Errorf("config error: 'scraper.max_sessions' must be at least 1")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'server.port' out of range: %d", c.Server.Port)
	}

	if c.SelectorsFile != "" {
		if _, err := os.Stat(c.SelectorsFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: selectors file not found: %s", c.SelectorsFile)
		}
	}

	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config error: '%s' is not an absolute URL: %q", key, raw)
	}
	return nil
}
