// Package plugin defines the plugin system for steward.
// Plugins are notified of lifecycle events (permissions granted, organization
// renamed, user removed, etc.) and can react: logging, metrics, cleanup of
// dependent resources.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about. Permission hooks are informational and
// their errors are logged. Organization and user hooks gate the operation
// that fired them: the first error aborts it.
package plugin

import (
	"context"

	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/user"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Permission lifecycle hooks
// ──────────────────────────────────────────────────

// PermissionsCreated is called after a grant is stored for a key that had
// no previous grant. initiator is the acting user's name, empty when
// anonymous.
type PermissionsCreated interface {
	OnPermissionsCreated(ctx context.Context, initiator string, p *permission.Permission) error
}

// PermissionsRemoved is called after a grant is removed.
type PermissionsRemoved interface {
	OnPermissionsRemoved(ctx context.Context, initiator string, p *permission.Permission) error
}

// ──────────────────────────────────────────────────
// Organization lifecycle hooks
// ──────────────────────────────────────────────────

// OrganizationPersisted is called inside the create transaction.
type OrganizationPersisted interface {
	OnOrganizationPersisted(ctx context.Context, o *organization.Organization) error
}

// OrganizationRenamed is called after an organization and its descendants
// were renamed.
type OrganizationRenamed interface {
	OnOrganizationRenamed(ctx context.Context, initiator, oldName, newName string, o *organization.Organization) error
}

// BeforeAccountRemoved is called before an organization's account and its
// dependent resources are removed.
type BeforeAccountRemoved interface {
	OnBeforeAccountRemoved(ctx context.Context, o *organization.Organization) error
}

// BeforeOrganizationRemoved is called before an organization is removed.
type BeforeOrganizationRemoved interface {
	OnBeforeOrganizationRemoved(ctx context.Context, o *organization.Organization) error
}

// OrganizationRemoved is called inside the removal transaction with the
// ids of the members that were stripped.
type OrganizationRemoved interface {
	OnOrganizationRemoved(ctx context.Context, initiator string, o *organization.Organization, memberIDs []string) error
}

// ──────────────────────────────────────────────────
// User lifecycle hooks
// ──────────────────────────────────────────────────

// UserCreated is called when the user service reports a new account.
type UserCreated interface {
	OnUserCreated(ctx context.Context, u *user.User) error
}

// BeforeUserRemoved is called before the user service removes an account.
type BeforeUserRemoved interface {
	OnBeforeUserRemoved(ctx context.Context, u *user.User) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
