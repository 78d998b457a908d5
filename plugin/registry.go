package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/user"
)

// entry pairs a hook with the plugin name for logging.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	permissionsCreated        []entry[PermissionsCreated]
	permissionsRemoved        []entry[PermissionsRemoved]
	organizationPersisted     []entry[OrganizationPersisted]
	organizationRenamed       []entry[OrganizationRenamed]
	beforeAccountRemoved      []entry[BeforeAccountRemoved]
	beforeOrganizationRemoved []entry[BeforeOrganizationRemoved]
	organizationRemoved       []entry[OrganizationRemoved]
	userCreated               []entry[UserCreated]
	beforeUserRemoved         []entry[BeforeUserRemoved]
	shutdown                  []entry[Shutdown]
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(PermissionsCreated); ok {
		r.permissionsCreated = append(r.permissionsCreated, entry[PermissionsCreated]{name, h})
	}
	if h, ok := p.(PermissionsRemoved); ok {
		r.permissionsRemoved = append(r.permissionsRemoved, entry[PermissionsRemoved]{name, h})
	}
	if h, ok := p.(OrganizationPersisted); ok {
		r.organizationPersisted = append(r.organizationPersisted, entry[OrganizationPersisted]{name, h})
	}
	if h, ok := p.(OrganizationRenamed); ok {
		r.organizationRenamed = append(r.organizationRenamed, entry[OrganizationRenamed]{name, h})
	}
	if h, ok := p.(BeforeAccountRemoved); ok {
		r.beforeAccountRemoved = append(r.beforeAccountRemoved, entry[BeforeAccountRemoved]{name, h})
	}
	if h, ok := p.(BeforeOrganizationRemoved); ok {
		r.beforeOrganizationRemoved = append(r.beforeOrganizationRemoved, entry[BeforeOrganizationRemoved]{name, h})
	}
	if h, ok := p.(OrganizationRemoved); ok {
		r.organizationRemoved = append(r.organizationRemoved, entry[OrganizationRemoved]{name, h})
	}
	if h, ok := p.(UserCreated); ok {
		r.userCreated = append(r.userCreated, entry[UserCreated]{name, h})
	}
	if h, ok := p.(BeforeUserRemoved); ok {
		r.beforeUserRemoved = append(r.beforeUserRemoved, entry[BeforeUserRemoved]{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Permission event emitters
// ──────────────────────────────────────────────────

// EmitPermissionsCreated notifies all plugins that implement PermissionsCreated.
func (r *Registry) EmitPermissionsCreated(ctx context.Context, initiator string, p *permission.Permission) {
	for _, e := range r.permissionsCreated {
		if err := e.hook.OnPermissionsCreated(ctx, initiator, p); err != nil {
			r.logHookError("OnPermissionsCreated", e.name, err)
		}
	}
}

// EmitPermissionsRemoved notifies all plugins that implement PermissionsRemoved.
func (r *Registry) EmitPermissionsRemoved(ctx context.Context, initiator string, p *permission.Permission) {
	for _, e := range r.permissionsRemoved {
		if err := e.hook.OnPermissionsRemoved(ctx, initiator, p); err != nil {
			r.logHookError("OnPermissionsRemoved", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Organization event emitters
// ──────────────────────────────────────────────────

// EmitOrganizationPersisted notifies plugins in order and stops at the first error.
func (r *Registry) EmitOrganizationPersisted(ctx context.Context, o *organization.Organization) error {
	for _, e := range r.organizationPersisted {
		if err := e.hook.OnOrganizationPersisted(ctx, o); err != nil {
			return hookError("OnOrganizationPersisted", e.name, err)
		}
	}
	return nil
}

// EmitOrganizationRenamed notifies plugins in order and stops at the first error.
func (r *Registry) EmitOrganizationRenamed(ctx context.Context, initiator, oldName, newName string, o *organization.Organization) error {
	for _, e := range r.organizationRenamed {
		if err := e.hook.OnOrganizationRenamed(ctx, initiator, oldName, newName, o); err != nil {
			return hookError("OnOrganizationRenamed", e.name, err)
		}
	}
	return nil
}

// EmitBeforeAccountRemoved notifies plugins in order and stops at the first error.
func (r *Registry) EmitBeforeAccountRemoved(ctx context.Context, o *organization.Organization) error {
	for _, e := range r.beforeAccountRemoved {
		if err := e.hook.OnBeforeAccountRemoved(ctx, o); err != nil {
			return hookError("OnBeforeAccountRemoved", e.name, err)
		}
	}
	return nil
}

// EmitBeforeOrganizationRemoved notifies plugins in order and stops at the first error.
func (r *Registry) EmitBeforeOrganizationRemoved(ctx context.Context, o *organization.Organization) error {
	for _, e := range r.beforeOrganizationRemoved {
		if err := e.hook.OnBeforeOrganizationRemoved(ctx, o); err != nil {
			return hookError("OnBeforeOrganizationRemoved", e.name, err)
		}
	}
	return nil
}

// EmitOrganizationRemoved notifies plugins in order and stops at the first error.
func (r *Registry) EmitOrganizationRemoved(ctx context.Context, initiator string, o *organization.Organization, memberIDs []string) error {
	for _, e := range r.organizationRemoved {
		if err := e.hook.OnOrganizationRemoved(ctx, initiator, o, memberIDs); err != nil {
			return hookError("OnOrganizationRemoved", e.name, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// User event emitters
// ──────────────────────────────────────────────────

// EmitUserCreated notifies plugins in order and stops at the first error.
func (r *Registry) EmitUserCreated(ctx context.Context, u *user.User) error {
	for _, e := range r.userCreated {
		if err := e.hook.OnUserCreated(ctx, u); err != nil {
			return hookError("OnUserCreated", e.name, err)
		}
	}
	return nil
}

// EmitBeforeUserRemoved notifies plugins in order and stops at the first error.
func (r *Registry) EmitBeforeUserRemoved(ctx context.Context, u *user.User) error {
	for _, e := range r.beforeUserRemoved {
		if err := e.hook.OnBeforeUserRemoved(ctx, u); err != nil {
			return hookError("OnBeforeUserRemoved", e.name, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when an informational hook returns an error.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}

func hookError(hook, pluginName string, err error) error {
	return fmt.Errorf("plugin %s %s: %w", pluginName, hook, err)
}
