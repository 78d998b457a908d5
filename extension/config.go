package extension

import (
	"time"

	"github.com/xraph/steward"
)

// Config holds the steward extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.steward" or "steward" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableMetrics skips the Prometheus plugin.
	DisableMetrics bool `json:"disable_metrics" mapstructure:"disable_metrics" yaml:"disable_metrics"`

	// BasePath is the URL prefix for steward routes (default: "/steward").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// CacheTTL enables the exists-check cache. Zero disables caching.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// CacheSize bounds the in-memory cache. Ignored when RedisURL is set.
	CacheSize int `json:"cache_size" mapstructure:"cache_size" yaml:"cache_size"`

	// RedisURL selects the Redis cache when CacheTTL is set, e.g.
	// "redis://localhost:6379/0".
	RedisURL string `json:"redis_url" mapstructure:"redis_url" yaml:"redis_url"`

	// Engine is passed to the engine unchanged.
	Engine steward.Config `json:"engine" mapstructure:"engine" yaml:"engine"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:  "/steward",
		CacheSize: 10000,
		Engine:    steward.DefaultConfig(),
	}
}
