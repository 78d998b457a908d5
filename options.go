package steward

import (
	"log/slog"

	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/plugin"
	"github.com/xraph/steward/store"
	"github.com/xraph/steward/user"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithPermissionStore registers a store for an additional permissions
// domain. The system and organization domains are always registered.
func WithPermissionStore(ps permission.Store) Option {
	return func(e *Engine) { e.permissionStores = append(e.permissionStores, ps) }
}

// WithCache sets the exists-check cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithUsers sets the user directory used to resolve the admin account.
func WithUsers(d user.Directory) Option { return func(e *Engine) { e.users = d } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) { e.extraPlugins = append(e.extraPlugins, x) }
}
