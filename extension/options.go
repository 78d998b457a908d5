package extension

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	red "github.com/redis/go-redis/v9"

	"github.com/xraph/steward"
	"github.com/xraph/steward/plugin"
	"github.com/xraph/steward/store"
)

// ExtOption configures the steward Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.stewardOpts = append(e.stewardOpts, steward.WithStore(s))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...steward.Option) ExtOption {
	return func(e *Extension) {
		e.stewardOpts = append(e.stewardOpts, opts...)
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithRedis sets the client backing the exists-check cache. It takes
// precedence over Config.RedisURL.
func WithRedis(client red.UniversalClient) ExtOption {
	return func(e *Extension) {
		e.redis = client
	}
}

// WithRegisterer sets the Prometheus registerer for the metrics plugin.
func WithRegisterer(reg prometheus.Registerer) ExtOption {
	return func(e *Extension) {
		e.registerer = reg
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
