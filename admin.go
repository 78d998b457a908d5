package steward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/plugin"
	"github.com/xraph/steward/user"
)

// Compile-time plugin checks.
var (
	_ plugin.Plugin      = (*AdminInitializer)(nil)
	_ plugin.UserCreated = (*AdminInitializer)(nil)
)

// AdminInitializer grants the configured admin account every action of the
// system domain. It runs once at startup and again whenever an account with
// the admin name is created.
type AdminInitializer struct {
	users       user.Directory
	permissions *PermissionsManager
	adminName   string
	logger      *slog.Logger
}

// NewAdminInitializer builds an initializer. users may be nil, in which
// case only OnUserCreated grants anything.
func NewAdminInitializer(users user.Directory, permissions *PermissionsManager, adminName string, logger *slog.Logger) *AdminInitializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminInitializer{
		users:       users,
		permissions: permissions,
		adminName:   adminName,
		logger:      logger,
	}
}

// Name implements plugin.Plugin.
func (a *AdminInitializer) Name() string { return "admin-initializer" }

// Init grants the admin account its system permissions. A missing account
// is logged and skipped.
func (a *AdminInitializer) Init(ctx context.Context) error {
	if a.adminName == "" || a.users == nil {
		return nil
	}
	u, err := a.users.GetByName(ctx, a.adminName)
	if errors.Is(err, user.ErrNotFound) {
		a.logger.Warn("admin account not found, system permissions not granted",
			"admin_user_name", a.adminName,
		)
		return nil
	}
	if err != nil {
		return serverError("get admin user", err)
	}
	return a.grant(ctx, u)
}

// OnUserCreated grants system permissions when the created account is the
// configured admin.
func (a *AdminInitializer) OnUserCreated(ctx context.Context, u *user.User) error {
	if a.adminName == "" || u == nil || u.Name != a.adminName {
		return nil
	}
	return a.grant(ctx, u)
}

func (a *AdminInitializer) grant(ctx context.Context, u *user.User) error {
	d, err := a.permissions.Domain(permission.SystemDomainID)
	if err != nil {
		return err
	}
	p := &permission.Permission{
		UserID:   u.ID,
		DomainID: d.ID(),
		Actions:  d.AllowedActions(),
	}
	if err := a.permissions.Store(ctx, Actor{}, p); err != nil {
		return fmt.Errorf("grant system permissions to %s: %w", u.Name, err)
	}
	a.logger.Info("system permissions granted to admin",
		"user_id", u.ID,
		"admin_user_name", u.Name,
	)
	return nil
}
