// Package extension provides a Forge extension entry point for steward.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	red "github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/steward"
	"github.com/xraph/steward/api"
	"github.com/xraph/steward/cache"
	"github.com/xraph/steward/metrics"
	"github.com/xraph/steward/plugin"
	"github.com/xraph/steward/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "steward"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Domain-scoped permissions and hierarchical organizations"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts steward as a Forge extension.
type Extension struct {
	config      Config
	eng         *steward.Engine
	apiHandler  *api.API
	logger      *slog.Logger
	stewardOpts []steward.Option
	plugins     []plugin.Plugin
	redis       red.UniversalClient
	ownsRedis   bool
	registerer  prometheus.Registerer
}

// New creates a steward Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying steward engine.
func (e *Extension) Engine() *steward.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*steward.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("steward: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := e.engineOptions(fapp, logger)
	if err != nil {
		return err
	}

	eng, err := steward.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("steward: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(eng, fapp.Router())

	if !e.config.DisableRoutes {
		router := fapp.Router()
		if e.config.BasePath != "" {
			router = router.Group(e.config.BasePath)
		}
		if err := e.apiHandler.RegisterRoutes(router); err != nil {
			return fmt.Errorf("steward: register routes: %w", err)
		}
	}

	return nil
}

// engineOptions assembles engine options in precedence order: defaults,
// DI-resolved store, extension config, user options, then plugins.
func (e *Extension) engineOptions(fapp forge.App, logger *slog.Logger) ([]steward.Option, error) {
	opts := make([]steward.Option, 0, len(e.stewardOpts)+len(e.plugins)+5)
	opts = append(opts,
		steward.WithLogger(logger),
		steward.WithConfig(e.config.Engine),
	)

	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, steward.WithStore(s))
	}

	c, err := e.buildCache(logger)
	if err != nil {
		return nil, err
	}
	if c != nil {
		opts = append(opts, steward.WithCache(c))
	}

	if !e.config.DisableMetrics {
		m, err := metrics.New(metrics.Options{Registerer: e.registerer})
		if err != nil {
			return nil, fmt.Errorf("steward: create metrics plugin: %w", err)
		}
		opts = append(opts, steward.WithPlugin(m))
	}

	opts = append(opts, e.stewardOpts...)
	for _, x := range e.plugins {
		opts = append(opts, steward.WithPlugin(x))
	}
	return opts, nil
}

// buildCache returns nil when caching is disabled.
func (e *Extension) buildCache(logger *slog.Logger) (steward.Cache, error) {
	if e.config.CacheTTL <= 0 {
		return nil, nil
	}

	client := e.redis
	if client == nil && e.config.RedisURL != "" {
		ropts, err := red.ParseURL(e.config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("steward: parse redis url: %w", err)
		}
		client = red.NewClient(ropts)
		e.redis = client
		e.ownsRedis = true
	}
	if client != nil {
		return cache.NewRedis(client,
			cache.WithRedisTTL(e.config.CacheTTL),
			cache.WithLogger(logger),
		), nil
	}

	return cache.NewMemory(
		cache.WithTTL(e.config.CacheTTL),
		cache.WithMaxSize(e.config.CacheSize),
	), nil
}

// Start begins the steward engine and runs migrations if enabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("steward: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if s := e.eng.Store(); s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("steward: migration failed: %w", err)
			}
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the steward engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	err := e.eng.Stop(ctx)
	if e.ownsRedis {
		if cerr := e.redis.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("steward: close redis: %w", cerr))
		}
	}
	return err
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("steward: extension not initialized")
	}
	s := e.eng.Store()
	if s == nil {
		return errors.New("steward: no store configured")
	}
	if err := s.Ping(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		if err := e.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("steward: redis: %w", err)
		}
	}
	return nil
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all steward API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
