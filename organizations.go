package steward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/page"
	"github.com/xraph/steward/plugin"
	"github.com/xraph/steward/store"
)

// OrganizationManager creates, renames and removes organizations and keeps
// qualified names and memberships consistent across the tree. Every
// mutation runs in a store transaction.
type OrganizationManager struct {
	store       store.Store
	permissions *PermissionsManager
	plugins     *plugin.Registry
	reserved    map[string]struct{}
	pageSize    int
	logger      *slog.Logger
}

// NewOrganizationManager builds a manager. plugins and logger may be nil.
func NewOrganizationManager(s store.Store, permissions *PermissionsManager, plugins *plugin.Registry, cfg Config, logger *slog.Logger) *OrganizationManager {
	if plugins == nil {
		plugins = plugin.NewRegistry(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	reserved := make(map[string]struct{}, len(cfg.ReservedNames))
	for _, n := range cfg.ReservedNames {
		reserved[strings.ToLower(n)] = struct{}{}
	}
	return &OrganizationManager{
		store:       s,
		permissions: permissions,
		plugins:     plugins,
		reserved:    reserved,
		pageSize:    cfg.pageSize(),
		logger:      logger,
	}
}

// Create persists a new organization under o.ParentID, or as a root when
// ParentID is nil, and makes actor its first member with every
// organization action.
func (m *OrganizationManager) Create(ctx context.Context, actor Actor, o *organization.Organization) (*organization.Organization, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: organization is required", ErrInvalidArgument)
	}
	if err := validateName(o.Name); err != nil {
		return nil, err
	}
	if actor.IsAnonymous() {
		return nil, fmt.Errorf("%w: creating an organization requires a user", ErrInvalidArgument)
	}

	created := &organization.Organization{
		ID:            id.NewOrganizationID(),
		Name:          o.Name,
		QualifiedName: o.Name,
	}

	err := m.store.InTx(ctx, func(ctx context.Context) error {
		if o.ParentID != nil && !o.ParentID.IsNil() {
			parent, err := m.store.GetOrganization(ctx, *o.ParentID)
			if err != nil {
				return organizationError("get parent organization", o.ParentID.String(), err)
			}
			pid := parent.ID
			created.ParentID = &pid
			created.QualifiedName = organization.QualifiedName(parent.QualifiedName, o.Name)
		}
		if err := m.checkReserved(created.QualifiedName); err != nil {
			return err
		}

		if err := m.store.CreateOrganization(ctx, created); err != nil {
			return organizationError("create organization", created.QualifiedName, err)
		}

		if err := m.storeOwner(ctx, actor, created.ID); err != nil {
			return err
		}
		return m.plugins.EmitOrganizationPersisted(ctx, created)
	})
	m.permissions.invalidateUnlocked(ctx, organization.DomainID, created.ID.String())
	if err != nil {
		return nil, err
	}

	m.logger.Debug("organization created",
		"organization_id", created.ID.String(),
		"qualified_name", created.QualifiedName,
	)
	return created, nil
}

// storeOwner makes actor a member of orgID with every organization action.
func (m *OrganizationManager) storeOwner(ctx context.Context, actor Actor, orgID id.OrganizationID) error {
	unlock := m.permissions.lockInstance(organization.DomainID, orgID.String())
	defer unlock()

	owner := &organization.Member{
		UserID:         actor.UserID,
		OrganizationID: orgID,
		Actions:        organization.Domain().AllowedActions(),
	}
	if err := m.store.StoreMember(ctx, owner); err != nil {
		return serverError("store organization owner", err)
	}
	m.permissions.invalidate(ctx, organization.DomainID, orgID.String())
	return nil
}

// Update renames an organization. Only the last segment of the qualified
// name changes; descendants are moved under the new name.
func (m *OrganizationManager) Update(ctx context.Context, actor Actor, orgID id.OrganizationID, update *organization.Organization) (*organization.Organization, error) {
	if orgID.IsNil() {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidArgument)
	}
	if update == nil {
		return nil, fmt.Errorf("%w: organization update is required", ErrInvalidArgument)
	}
	if err := validateName(update.Name); err != nil {
		return nil, err
	}

	var updated *organization.Organization
	err := m.store.InTx(ctx, func(ctx context.Context) error {
		existing, err := m.store.GetOrganization(ctx, orgID)
		if err != nil {
			return organizationError("get organization", orgID.String(), err)
		}
		oldName := existing.Name
		oldQN := existing.QualifiedName
		newQN := organization.Rename(oldQN, update.Name)
		if err := m.checkReserved(newQN); err != nil {
			return err
		}

		existing.Name = update.Name
		existing.QualifiedName = newQN
		if err := m.store.UpdateOrganization(ctx, existing); err != nil {
			return organizationError("update organization", newQN, err)
		}
		updated = existing

		if oldName == update.Name {
			return nil
		}
		if err := m.rebaseSuborganizations(ctx, oldQN, newQN); err != nil {
			return err
		}
		return m.plugins.EmitOrganizationRenamed(ctx, actor.initiator(), oldName, update.Name, existing)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// rebaseSuborganizations moves every descendant of oldQN under newQN.
// Renamed rows stop matching oldQN, so the first page is fetched until
// none remain.
func (m *OrganizationManager) rebaseSuborganizations(ctx context.Context, oldQN, newQN string) error {
	for {
		pg, err := m.store.ListSuborganizations(ctx, oldQN, m.pageSize, 0)
		if err != nil {
			return serverError("list suborganizations", err)
		}
		if pg.IsEmpty() {
			return nil
		}
		for _, sub := range pg.Items {
			qn, ok := organization.Rebase(sub.QualifiedName, oldQN, newQN)
			if !ok {
				return serverError("rebase suborganization", fmt.Errorf("%q is not under %q", sub.QualifiedName, oldQN))
			}
			sub.QualifiedName = qn
			if err := m.store.UpdateOrganization(ctx, sub); err != nil {
				return organizationError("update suborganization", qn, err)
			}
		}
	}
}

// removal is one organization on the removal worklist. It is deleted once
// a visit finds no children left under it.
type removal struct {
	org     *organization.Organization
	visited bool
}

// Remove deletes an organization together with all of its suborganizations
// and members. Removing an organization that does not exist succeeds.
//
// Suborganizations are removed depth-first, each in its own transaction.
// Children are always read from the first page, so a failure part way
// leaves the remaining tree in place and calling Remove again resumes from
// what is left.
func (m *OrganizationManager) Remove(ctx context.Context, actor Actor, orgID id.OrganizationID) error {
	if orgID.IsNil() {
		return fmt.Errorf("%w: organization id is required", ErrInvalidArgument)
	}
	root, err := m.store.GetOrganization(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return serverError("get organization", err)
	}

	stack := []*removal{{org: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if !top.visited {
			top.visited = true
			if err := m.plugins.EmitBeforeAccountRemoved(ctx, top.org); err != nil {
				return err
			}
			if err := m.plugins.EmitBeforeOrganizationRemoved(ctx, top.org); err != nil {
				return err
			}
		}

		children, err := m.store.ListOrganizationsByParent(ctx, top.org.ID, m.pageSize, 0)
		if err != nil {
			return serverError("list child organizations", err)
		}
		if !children.IsEmpty() {
			for i := len(children.Items) - 1; i >= 0; i-- {
				stack = append(stack, &removal{org: children.Items[i]})
			}
			continue
		}

		stack = stack[:len(stack)-1]
		if err := m.removeOne(ctx, actor, top.org); err != nil {
			return err
		}
	}
	return nil
}

// removeOne strips the members of a leaf organization and deletes it. The
// organization's stripe is held so no membership can be written between
// the drain and the delete.
func (m *OrganizationManager) removeOne(ctx context.Context, actor Actor, o *organization.Organization) error {
	err := m.store.InTx(ctx, func(ctx context.Context) error {
		unlock := m.permissions.lockInstance(organization.DomainID, o.ID.String())
		defer unlock()

		var memberIDs []string
		for {
			pg, err := m.store.ListMembers(ctx, o.ID, m.pageSize, 0)
			if err != nil {
				return serverError("list members", err)
			}
			if pg.IsEmpty() {
				break
			}
			for _, mem := range pg.Items {
				if err := m.store.RemoveMember(ctx, mem.UserID, o.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
					return serverError("remove member", err)
				}
				memberIDs = append(memberIDs, mem.UserID)
			}
		}
		m.permissions.invalidate(ctx, organization.DomainID, o.ID.String())

		if err := m.store.DeleteOrganization(ctx, o.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return serverError("delete organization", err)
		}
		if err := m.plugins.EmitOrganizationRemoved(ctx, actor.initiator(), o, memberIDs); err != nil {
			return err
		}
		m.logger.Debug("organization removed",
			"organization_id", o.ID.String(),
			"qualified_name", o.QualifiedName,
			"members", len(memberIDs),
		)
		return nil
	})
	m.permissions.invalidateUnlocked(ctx, organization.DomainID, o.ID.String())
	return err
}

// GetByID returns an organization by id.
func (m *OrganizationManager) GetByID(ctx context.Context, orgID id.OrganizationID) (*organization.Organization, error) {
	o, err := m.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, organizationError("get organization", orgID.String(), err)
	}
	return o, nil
}

// GetByName returns an organization by qualified name.
func (m *OrganizationManager) GetByName(ctx context.Context, qualifiedName string) (*organization.Organization, error) {
	o, err := m.store.GetOrganizationByName(ctx, qualifiedName)
	if err != nil {
		return nil, organizationError("get organization", qualifiedName, err)
	}
	return o, nil
}

// GetByParent returns one page of the direct children of parentID.
func (m *OrganizationManager) GetByParent(ctx context.Context, parentID id.OrganizationID, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	pg, err := m.store.ListOrganizationsByParent(ctx, parentID, maxItems, skipCount)
	if err != nil {
		return nil, serverError("list child organizations", err)
	}
	return pg, nil
}

// GetSuborganizations returns one page of every descendant of the
// organization named parentQualifiedName, at any depth.
func (m *OrganizationManager) GetSuborganizations(ctx context.Context, parentQualifiedName string, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	pg, err := m.store.ListSuborganizations(ctx, parentQualifiedName, maxItems, skipCount)
	if err != nil {
		return nil, serverError("list suborganizations", err)
	}
	return pg, nil
}

// GetByMember returns one page of the organizations userID belongs to.
func (m *OrganizationManager) GetByMember(ctx context.Context, userID string, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	pg, err := m.store.ListOrganizationsByMember(ctx, userID, maxItems, skipCount)
	if err != nil {
		return nil, serverError("list member organizations", err)
	}
	return pg, nil
}

// GetMembers returns one page of an organization's members.
func (m *OrganizationManager) GetMembers(ctx context.Context, orgID id.OrganizationID, maxItems int, skipCount int64) (*page.Page[*organization.Member], error) {
	pg, err := m.store.ListMembers(ctx, orgID, maxItems, skipCount)
	if err != nil {
		return nil, serverError("list members", err)
	}
	return pg, nil
}

// SetMember grants userID the given organization actions, replacing any
// previous membership. The last-admin rule applies.
func (m *OrganizationManager) SetMember(ctx context.Context, actor Actor, orgID id.OrganizationID, userID string, actions []string) error {
	if userID == "" {
		return fmt.Errorf("%w: member user id is required", ErrInvalidArgument)
	}
	ps, err := m.permissions.storeFor(organization.DomainID)
	if err != nil {
		return err
	}
	unlock := m.permissions.lockInstance(organization.DomainID, orgID.String())
	defer unlock()

	if _, err := m.GetByID(ctx, orgID); err != nil {
		return err
	}
	return m.permissions.storeLocked(ctx, actor, ps, userID, orgID.String(), actions)
}

// RemoveMember revokes a membership. The last-admin rule applies.
func (m *OrganizationManager) RemoveMember(ctx context.Context, actor Actor, orgID id.OrganizationID, userID string) error {
	ps, err := m.permissions.storeFor(organization.DomainID)
	if err != nil {
		return err
	}
	unlock := m.permissions.lockInstance(organization.DomainID, orgID.String())
	defer unlock()

	if _, err := m.GetByID(ctx, orgID); err != nil {
		return err
	}
	return m.permissions.removeProtectedLocked(ctx, actor, ps, userID, orgID.String())
}

// removeSoleMemberOrganizations removes every organization whose only
// member is userID.
func (m *OrganizationManager) removeSoleMemberOrganizations(ctx context.Context, actor Actor, userID string) error {
	var (
		orgs []*organization.Organization
		skip int64
	)
	for {
		pg, err := m.store.ListOrganizationsByMember(ctx, userID, m.pageSize, skip)
		if err != nil {
			return serverError("list member organizations", err)
		}
		orgs = append(orgs, pg.Items...)
		if pg.IsEmpty() || !pg.HasNext() {
			break
		}
		skip = pg.NextSkip()
	}

	for _, o := range orgs {
		members, err := m.store.ListMembers(ctx, o.ID, 1, 0)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return serverError("list members", err)
		}
		if members.TotalCount != 1 {
			continue
		}
		if err := m.Remove(ctx, actor, o.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *OrganizationManager) checkReserved(qualifiedName string) error {
	if _, ok := m.reserved[strings.ToLower(qualifiedName)]; ok {
		return fmt.Errorf("%w: %q", ErrReservedName, qualifiedName)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: organization name is required", ErrInvalidArgument)
	}
	if strings.Contains(name, organization.Separator) {
		return fmt.Errorf("%w: organization name %q must not contain %q", ErrInvalidArgument, name, organization.Separator)
	}
	return nil
}
