package steward

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/xraph/steward/page"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/plugin"
	"github.com/xraph/steward/store"
)

// PermissionsManager stores, fetches, removes and checks grants across all
// registered domains. It keeps at least one setPermissions holder on every
// instance that has grants.
type PermissionsManager struct {
	stores   map[string]permission.Store
	domains  []*permission.Domain
	locks    *stripedLock
	cache    Cache
	plugins  *plugin.Registry
	pageSize int
}

// NewPermissionsManager builds a manager over one store per domain. It
// fails with ErrDuplicateDomain if two stores serve the same domain id.
// plugins and cache may be nil.
func NewPermissionsManager(stores []permission.Store, plugins *plugin.Registry, cache Cache, cfg Config) (*PermissionsManager, error) {
	m := &PermissionsManager{
		stores:   make(map[string]permission.Store, len(stores)),
		locks:    newStripedLock(cfg.lockStripes()),
		cache:    cache,
		plugins:  plugins,
		pageSize: cfg.pageSize(),
	}
	if m.plugins == nil {
		m.plugins = plugin.NewRegistry(nil)
	}
	for _, ps := range stores {
		d := ps.Domain()
		if _, ok := m.stores[d.ID()]; ok {
			return nil, fmt.Errorf("%w %q", ErrDuplicateDomain, d.ID())
		}
		m.stores[d.ID()] = ps
		m.domains = append(m.domains, d)
	}
	return m, nil
}

// Domains returns every registered domain in registration order.
func (m *PermissionsManager) Domains() []*permission.Domain {
	return slices.Clone(m.domains)
}

// Domain returns the registered domain with the given id.
func (m *PermissionsManager) Domain(domainID string) (*permission.Domain, error) {
	ps, err := m.storeFor(domainID)
	if err != nil {
		return nil, err
	}
	return ps.Domain(), nil
}

// CheckActionsSupporting returns ErrUnsupportedActions listing every action
// the domain does not declare.
func (m *PermissionsManager) CheckActionsSupporting(domainID string, actions []string) error {
	d, err := m.Domain(domainID)
	if err != nil {
		return err
	}
	if bad := d.Unsupported(actions); len(bad) > 0 {
		return fmt.Errorf("%w: domain %q does not support %v", ErrUnsupportedActions, domainID, bad)
	}
	return nil
}

// Store creates or replaces the grant keyed by (user, domain, instance).
// It rejects a grant without setPermissions when the user currently holds
// the last setPermissions on the instance.
func (m *PermissionsManager) Store(ctx context.Context, actor Actor, p *permission.Permission) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("%w: permission with a user id is required", ErrInvalidArgument)
	}
	ps, err := m.storeFor(p.DomainID)
	if err != nil {
		return err
	}
	instanceID := instanceFor(ps.Domain(), p.InstanceID)

	unlock := m.locks.lock(lockKey(ps.Domain(), instanceID))
	defer unlock()
	return m.storeLocked(ctx, actor, ps, p.UserID, instanceID, p.Actions)
}

// storeLocked writes a grant. Callers hold the instance stripe.
func (m *PermissionsManager) storeLocked(ctx context.Context, actor Actor, ps permission.Store, userID, instanceID string, actions []string) error {
	d := ps.Domain()
	if !slices.Contains(actions, permission.SetPermissions) {
		last, err := m.userHasLastSetPermissions(ctx, ps, userID, instanceID)
		if err != nil {
			return err
		}
		if last {
			return fmt.Errorf("%w: user %s on %s", ErrLastAdmin, userID, describe(d, instanceID))
		}
	}

	grant, err := d.NewPermission(userID, instanceID, actions)
	if err != nil {
		return domainError(err)
	}

	prev, err := ps.Store(ctx, grant)
	if err != nil {
		return serverError("store permission", err)
	}
	m.invalidate(ctx, d.ID(), instanceID)

	if prev == nil {
		m.plugins.EmitPermissionsCreated(ctx, actor.initiator(), grant)
	}
	return nil
}

// Get returns the grant for a user on a domain instance.
func (m *PermissionsManager) Get(ctx context.Context, userID, domainID, instanceID string) (*permission.Permission, error) {
	ps, err := m.storeFor(domainID)
	if err != nil {
		return nil, err
	}
	instanceID = instanceFor(ps.Domain(), instanceID)
	p, err := ps.Get(ctx, userID, instanceID)
	if err != nil {
		return nil, permissionError("get permission", ps.Domain(), userID, instanceID, err)
	}
	return p, nil
}

// GetByInstance returns one page of the grants on a domain instance.
func (m *PermissionsManager) GetByInstance(ctx context.Context, domainID, instanceID string, maxItems int, skipCount int64) (*page.Page[*permission.Permission], error) {
	ps, err := m.storeFor(domainID)
	if err != nil {
		return nil, err
	}
	pg, err := ps.GetByInstance(ctx, instanceFor(ps.Domain(), instanceID), maxItems, skipCount)
	if err != nil {
		return nil, serverError("list permissions", err)
	}
	return pg, nil
}

// Remove deletes a user's grant on a domain instance. It is rejected when
// the user holds the last setPermissions on the instance.
func (m *PermissionsManager) Remove(ctx context.Context, actor Actor, userID, domainID, instanceID string) error {
	ps, err := m.storeFor(domainID)
	if err != nil {
		return err
	}
	instanceID = instanceFor(ps.Domain(), instanceID)

	unlock := m.locks.lock(lockKey(ps.Domain(), instanceID))
	defer unlock()
	return m.removeProtectedLocked(ctx, actor, ps, userID, instanceID)
}

// removeProtectedLocked applies the last-admin rule and deletes the grant.
// Callers hold the instance stripe.
func (m *PermissionsManager) removeProtectedLocked(ctx context.Context, actor Actor, ps permission.Store, userID, instanceID string) error {
	last, err := m.userHasLastSetPermissions(ctx, ps, userID, instanceID)
	if err != nil {
		return err
	}
	if last {
		return fmt.Errorf("%w: user %s on %s", ErrLastAdmin, userID, describe(ps.Domain(), instanceID))
	}
	return m.removeLocked(ctx, actor, ps, userID, instanceID)
}

// Exists reports whether the domain declares action and the user's grant on
// the instance includes it.
func (m *PermissionsManager) Exists(ctx context.Context, userID, domainID, instanceID, action string) (bool, error) {
	ps, err := m.storeFor(domainID)
	if err != nil {
		return false, err
	}
	d := ps.Domain()
	if !d.Allows(action) {
		return false, nil
	}
	key := CheckKey{UserID: userID, DomainID: d.ID(), InstanceID: instanceFor(d, instanceID), Action: action}
	if m.cache == nil {
		ok, err := ps.Exists(ctx, key.UserID, key.InstanceID, action)
		if err != nil {
			return false, serverError("check permission", err)
		}
		return ok, nil
	}

	if allowed, ok := m.cache.Get(ctx, key); ok {
		return allowed, nil
	}
	lk := lockKey(d, key.InstanceID)
	gen := m.locks.generation(lk)
	ok, err := ps.Exists(ctx, key.UserID, key.InstanceID, action)
	if err != nil {
		return false, serverError("check permission", err)
	}
	m.remember(ctx, lk, gen, key, ok)
	return ok, nil
}

// remember caches a backend answer read at generation gen. The answer is
// dropped when a writer holds the stripe or has invalidated the instance
// since gen.
func (m *PermissionsManager) remember(ctx context.Context, lk string, gen uint64, key CheckKey, allowed bool) {
	unlock, ok := m.locks.tryLock(lk)
	if !ok {
		return
	}
	defer unlock()
	if m.locks.generation(lk) != gen {
		return
	}
	m.cache.Set(ctx, key, allowed)
}

// RemoveAllForUser deletes every grant held by a user in every domain. It
// is meant for account removal and does not protect the last admin.
func (m *PermissionsManager) RemoveAllForUser(ctx context.Context, actor Actor, userID string) error {
	for _, d := range m.domains {
		ps := m.stores[d.ID()]
		grants, err := ps.GetByUser(ctx, userID)
		if err != nil {
			return serverError("list user permissions", err)
		}
		for _, g := range grants {
			if err := m.removeUnprotected(ctx, actor, ps, userID, g.InstanceID); err != nil {
				return err
			}
		}
	}
	if m.cache != nil {
		m.cache.InvalidateUser(ctx, userID)
	}
	return nil
}

func (m *PermissionsManager) removeUnprotected(ctx context.Context, actor Actor, ps permission.Store, userID, instanceID string) error {
	unlock := m.locks.lock(lockKey(ps.Domain(), instanceID))
	defer unlock()
	err := m.removeLocked(ctx, actor, ps, userID, instanceID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// removeLocked deletes a grant and fires PermissionsRemoved. Callers hold
// the instance stripe.
func (m *PermissionsManager) removeLocked(ctx context.Context, actor Actor, ps permission.Store, userID, instanceID string) error {
	d := ps.Domain()
	existing, err := ps.Get(ctx, userID, instanceID)
	if err != nil {
		return permissionError("get permission", d, userID, instanceID, err)
	}
	if err := ps.Remove(ctx, userID, instanceID); err != nil {
		return permissionError("remove permission", d, userID, instanceID, err)
	}
	m.invalidate(ctx, d.ID(), instanceID)
	m.plugins.EmitPermissionsRemoved(ctx, actor.initiator(), existing)
	return nil
}

// userHasLastSetPermissions reports whether userID is the only holder of
// setPermissions on the instance. Callers hold the instance stripe.
func (m *PermissionsManager) userHasLastSetPermissions(ctx context.Context, ps permission.Store, userID, instanceID string) (bool, error) {
	holds, err := ps.Exists(ctx, userID, instanceID, permission.SetPermissions)
	if err != nil {
		return false, serverError("check permission", err)
	}
	if !holds {
		return false, nil
	}

	var skip int64
	for {
		pg, err := ps.GetByInstance(ctx, instanceID, m.pageSize, skip)
		if err != nil {
			return false, serverError("list permissions", err)
		}
		for _, p := range pg.Items {
			if p.UserID != userID && p.Has(permission.SetPermissions) {
				return false, nil
			}
		}
		if pg.IsEmpty() || !pg.HasNext() {
			return true, nil
		}
		skip = pg.NextSkip()
	}
}

func (m *PermissionsManager) storeFor(domainID string) (permission.Store, error) {
	ps, ok := m.stores[domainID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrDomainNotFound, domainID)
	}
	return ps, nil
}

// invalidate drops cached answers for an instance. Callers hold the
// instance stripe.
func (m *PermissionsManager) invalidate(ctx context.Context, domainID, instanceID string) {
	m.locks.bump(instanceKey(domainID, instanceID))
	if m.cache != nil {
		m.cache.InvalidateInstance(ctx, domainID, instanceID)
	}
}

// invalidateUnlocked takes the instance stripe and drops cached answers.
// It is used after a store transaction has committed or rolled back.
func (m *PermissionsManager) invalidateUnlocked(ctx context.Context, domainID, instanceID string) {
	unlock := m.locks.lock(instanceKey(domainID, instanceID))
	defer unlock()
	m.invalidate(ctx, domainID, instanceID)
}

// lockInstance acquires the stripe of a domain instance.
func (m *PermissionsManager) lockInstance(domainID, instanceID string) func() {
	return m.locks.lock(instanceKey(domainID, instanceID))
}

// instanceFor drops the instance id for instance-less domains.
func instanceFor(d *permission.Domain, instanceID string) string {
	if !d.InstanceRequired() {
		return ""
	}
	return instanceID
}

// lockKey is the instance id, or the domain id for domain-wide grants.
func lockKey(d *permission.Domain, instanceID string) string {
	return instanceKey(d.ID(), instanceID)
}

func instanceKey(domainID, instanceID string) string {
	if instanceID == "" {
		return domainID
	}
	return domainID + "/" + instanceID
}

func describe(d *permission.Domain, instanceID string) string {
	if instanceID == "" {
		return fmt.Sprintf("domain %q", d.ID())
	}
	return fmt.Sprintf("%s %q", d.ID(), instanceID)
}

func domainError(err error) error {
	switch {
	case errors.Is(err, permission.ErrUnsupportedActions):
		return fmt.Errorf("%w: %w", ErrUnsupportedActions, err)
	case errors.Is(err, permission.ErrInstanceRequired):
		return fmt.Errorf("%w: %w", ErrInstanceRequired, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
}

func permissionError(op string, d *permission.Domain, userID, instanceID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: user %s on %s", ErrPermissionNotFound, userID, describe(d, instanceID))
	}
	return serverError(op, err)
}
