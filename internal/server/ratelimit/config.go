package ratelimit

import (
	"net/http"
	"time"

	"github.com/jonathan/court-case-fetcher/internal/config"
)

// EndpointConfig is the bucket shape for one endpoint.
type EndpointConfig struct {
	Path   string  // exact path, or a prefix when it ends with "/"
	Method string  // HTTP method
	Rate   float64 // tokens refilled per second
	Burst  int     // bucket capacity
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultRate     float64
	DefaultBurst    int
	CleanupInterval time.Duration
	IdleTTL         time.Duration // buckets idle this long are dropped
	Exempt          map[string]bool
	Endpoints       []EndpointConfig
}

// DefaultConfig allows 100 requests per second per client on every endpoint
// except searches, which are limited by FromServerConfig.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultRate:     100,
		DefaultBurst:    100,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Exempt:          map[string]bool{},
	}
}

// FromServerConfig limits POST /api/search to cfg.SearchRate per second per
// client with a burst of cfg.SearchBurst. A non-positive rate disables
// limiting.
func FromServerConfig(cfg config.ServerConfig) *Config {
	c := DefaultConfig()
	if cfg.SearchRate <= 0 {
		c.Enabled = false
		return c
	}
	burst := cfg.SearchBurst
	if burst < 1 {
		burst = 1
	}
	c.Endpoints = []EndpointConfig{
		{Path: "/api/search", Method: http.MethodPost, Rate: cfg.SearchRate, Burst: burst},
	}
	return c
}
