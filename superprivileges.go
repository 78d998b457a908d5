package steward

import (
	"context"
	"slices"

	"github.com/xraph/steward/permission"
)

// SuperPrivilegesChecker decides whether an actor may bypass regular
// permission checks. When super-privileged mode is on, a holder of
// manageSystem in the system domain is treated as an admin of every domain
// listed in the configuration.
type SuperPrivilegesChecker struct {
	enabled     bool
	domains     []string
	permissions *PermissionsManager
}

// NewSuperPrivilegesChecker builds a checker from cfg.
func NewSuperPrivilegesChecker(permissions *PermissionsManager, cfg Config) *SuperPrivilegesChecker {
	return &SuperPrivilegesChecker{
		enabled:     cfg.SuperPrivilegedMode,
		domains:     slices.Compact(slices.Sorted(slices.Values(cfg.SuperPrivilegedDomains))),
		permissions: permissions,
	}
}

// HasSuperPrivileges reports whether the actor may manage the system while
// super-privileged mode is on. The anonymous actor never has them.
func (c *SuperPrivilegesChecker) HasSuperPrivileges(ctx context.Context, actor Actor) (bool, error) {
	if !c.enabled || actor.IsAnonymous() {
		return false, nil
	}
	return c.permissions.Exists(ctx, actor.UserID, permission.SystemDomainID, "", permission.ManageSystem)
}

// IsPrivilegedToManagePermissions reports whether the actor may manage
// grants in domainID without holding setPermissions on the instance.
func (c *SuperPrivilegesChecker) IsPrivilegedToManagePermissions(ctx context.Context, actor Actor, domainID string) (bool, error) {
	if !slices.Contains(c.domains, domainID) {
		return false, nil
	}
	return c.HasSuperPrivileges(ctx, actor)
}

// Domains returns the domain ids eligible for the override, sorted.
func (c *SuperPrivilegesChecker) Domains() []string {
	return slices.Clone(c.domains)
}
