package steward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/plugin"
	"github.com/xraph/steward/store"
	"github.com/xraph/steward/user"
)

// Engine wires the permissions manager, the organization manager and the
// super-privileges checker over one store, and fires plugin hooks.
type Engine struct {
	store            store.Store
	permissionStores []permission.Store
	cache            Cache
	users            user.Directory
	plugins          *plugin.Registry
	extraPlugins     []plugin.Plugin
	logger           *slog.Logger
	config           Config

	permissions   *PermissionsManager
	organizations *OrganizationManager
	super         *SuperPrivilegesChecker
	admin         *AdminInitializer
}

// NewEngine creates a new steward engine with the given options. The system
// and organization domains are always registered; WithPermissionStore adds
// more.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("steward: store is required")
	}

	e.plugins = plugin.NewRegistry(e.logger)

	stores := []permission.Store{
		e.store.Permissions(permission.SystemDomain(e.config.SystemExtraActions...)),
		e.store.Permissions(organization.Domain()),
	}
	stores = append(stores, e.permissionStores...)

	pm, err := NewPermissionsManager(stores, e.plugins, e.cache, e.config)
	if err != nil {
		return nil, err
	}
	e.permissions = pm
	e.organizations = NewOrganizationManager(e.store, pm, e.plugins, e.config, e.logger)
	e.super = NewSuperPrivilegesChecker(pm, e.config)
	e.admin = NewAdminInitializer(e.users, pm, e.config.AdminUserName, e.logger)

	e.plugins.Register(e.admin)
	e.plugins.Register(&userCleanup{organizations: e.organizations, permissions: pm})
	for _, p := range e.extraPlugins {
		e.plugins.Register(p)
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Permissions returns the permissions manager.
func (e *Engine) Permissions() *PermissionsManager { return e.permissions }

// Organizations returns the organization manager.
func (e *Engine) Organizations() *OrganizationManager { return e.organizations }

// SuperPrivileges returns the super-privileges checker.
func (e *Engine) SuperPrivileges() *SuperPrivilegesChecker { return e.super }

// Start grants the configured admin account its system permissions.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.admin.Init(ctx); err != nil {
		return fmt.Errorf("steward: init admin: %w", err)
	}
	return nil
}

// Stop notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	e.plugins.EmitShutdown(ctx)
	return nil
}

// NotifyUserCreated is called by the user service after an account is
// created.
func (e *Engine) NotifyUserCreated(ctx context.Context, u *user.User) error {
	return e.plugins.EmitUserCreated(ctx, u)
}

// NotifyUserRemoved is called by the user service before an account is
// removed. It removes organizations the user is the only member of and
// every grant the user holds. A plugin error vetoes the removal.
func (e *Engine) NotifyUserRemoved(ctx context.Context, actor Actor, u *user.User) error {
	return e.plugins.EmitBeforeUserRemoved(WithActor(ctx, actor), u)
}

// Can reports whether the actor may perform action on a domain instance.
// Super privileges are consulted first.
func (e *Engine) Can(ctx context.Context, actor Actor, domainID, instanceID, action string) (bool, error) {
	if actor.IsAnonymous() {
		return false, nil
	}
	if action == permission.SetPermissions {
		ok, err := e.super.IsPrivilegedToManagePermissions(ctx, actor, domainID)
		if err != nil || ok {
			return ok, err
		}
	}
	return e.permissions.Exists(ctx, actor.UserID, domainID, instanceID, action)
}

// CanManagePermissions reports whether the actor may change grants on a
// domain instance.
func (e *Engine) CanManagePermissions(ctx context.Context, actor Actor, domainID, instanceID string) (bool, error) {
	return e.Can(ctx, actor, domainID, instanceID, permission.SetPermissions)
}

// Enforce returns an error wrapping ErrAccessDenied if the actor may not
// perform action on the instance.
func (e *Engine) Enforce(ctx context.Context, actor Actor, domainID, instanceID, action string) error {
	ok, err := e.Can(ctx, actor, domainID, instanceID, action)
	if err != nil {
		return fmt.Errorf("steward check: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s on %s %q", ErrAccessDenied, action, domainID, instanceID)
	}
	return nil
}

// userCleanup removes what a user leaves behind when their account goes.
type userCleanup struct {
	organizations *OrganizationManager
	permissions   *PermissionsManager
}

func (c *userCleanup) Name() string { return "user-cleanup" }

func (c *userCleanup) OnBeforeUserRemoved(ctx context.Context, u *user.User) error {
	actor := ActorFromContext(ctx)
	if err := c.organizations.removeSoleMemberOrganizations(ctx, actor, u.ID); err != nil {
		return err
	}
	return c.permissions.RemoveAllForUser(ctx, actor, u.ID)
}
