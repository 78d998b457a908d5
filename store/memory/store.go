// Package memory provides an in-memory implementation of the steward
// composite store. It is intended for testing and development.
//
// Transactions serialize with each other. Each write made inside one is
// journaled, and a rollback undoes exactly those writes. Writes are visible
// to other callers before the transaction ends.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/page"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/store"
)

// Compile-time interface checks.
var (
	_ store.Store              = (*Store)(nil)
	_ organization.Store       = (*Store)(nil)
	_ organization.MemberStore = (*Store)(nil)
	_ permission.Store         = (*permissionView)(nil)
)

type grantKey struct {
	domain   string
	instance string
	user     string
}

type grantEntry struct {
	perm *permission.Permission
	seq  uint64
}

type orgEntry struct {
	org *organization.Organization
	seq uint64
}

type txKey struct{}

// txState is the undo journal of one transaction.
type txState struct {
	s    *Store
	undo []func()
}

// Store is a thread-safe in-memory store for all steward entities.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	organizations map[string]orgEntry
	grants        map[grantKey]grantEntry
	seq           uint64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		organizations: make(map[string]orgEntry),
		grants:        make(map[grantKey]grantEntry),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// InTx runs fn and undoes the writes it made through the store if it
// fails.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txState{s: s}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) txFrom(ctx context.Context) *txState {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok && tx.s == s {
		return tx
	}
	return nil
}

// journal records how to undo a write when ctx carries a transaction.
// Callers hold s.mu.
func (s *Store) journal(ctx context.Context, undo func()) {
	if tx := s.txFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

func (s *Store) restoreOrganization(key string, e orgEntry, existed bool) func() {
	return func() {
		if existed {
			s.organizations[key] = e
			return
		}
		delete(s.organizations, key)
	}
}

func (s *Store) restoreGrant(k grantKey, e grantEntry, existed bool) func() {
	return func() {
		if existed {
			s.grants[k] = e
			return
		}
		delete(s.grants, k)
	}
}

func (s *Store) next() uint64 {
	s.seq++
	return s.seq
}

// ──────────────────────────────────────────────────
// Organization store
// ──────────────────────────────────────────────────

func (s *Store) CreateOrganization(ctx context.Context, o *organization.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.organizations[o.ID.String()]; ok {
		return fmt.Errorf("organization %s: %w", o.ID, store.ErrDuplicate)
	}
	for _, e := range s.organizations {
		if e.org.QualifiedName == o.QualifiedName {
			return fmt.Errorf("organization %q: %w", o.QualifiedName, store.ErrDuplicate)
		}
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	s.journal(ctx, s.restoreOrganization(o.ID.String(), orgEntry{}, false))
	s.organizations[o.ID.String()] = orgEntry{org: o.Clone(), seq: s.next()}
	return nil
}

func (s *Store) UpdateOrganization(ctx context.Context, o *organization.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.organizations[o.ID.String()]
	if !ok {
		return fmt.Errorf("organization %s: %w", o.ID, store.ErrNotFound)
	}
	for k, other := range s.organizations {
		if k != o.ID.String() && other.org.QualifiedName == o.QualifiedName {
			return fmt.Errorf("organization %q: %w", o.QualifiedName, store.ErrDuplicate)
		}
	}
	s.journal(ctx, s.restoreOrganization(o.ID.String(), e, true))
	o.UpdatedAt = time.Now().UTC()
	s.organizations[o.ID.String()] = orgEntry{org: o.Clone(), seq: e.seq}
	return nil
}

func (s *Store) DeleteOrganization(ctx context.Context, orgID id.OrganizationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.organizations[orgID.String()]
	if !ok {
		return nil
	}
	s.journal(ctx, s.restoreOrganization(orgID.String(), e, true))
	delete(s.organizations, orgID.String())
	return nil
}

func (s *Store) GetOrganization(_ context.Context, orgID id.OrganizationID) (*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.organizations[orgID.String()]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", orgID, store.ErrNotFound)
	}
	return e.org.Clone(), nil
}

func (s *Store) GetOrganizationByName(_ context.Context, qualifiedName string) (*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.organizations {
		if e.org.QualifiedName == qualifiedName {
			return e.org.Clone(), nil
		}
	}
	return nil, fmt.Errorf("organization %q: %w", qualifiedName, store.ErrNotFound)
}

func (s *Store) ListOrganizationsByParent(_ context.Context, parentID id.OrganizationID, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	return s.listOrganizations(func(o *organization.Organization) bool {
		return o.ParentID != nil && o.ParentID.String() == parentID.String()
	}, maxItems, skipCount), nil
}

func (s *Store) ListSuborganizations(_ context.Context, parentQualifiedName string, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	return s.listOrganizations(func(o *organization.Organization) bool {
		return organization.IsDescendant(o.QualifiedName, parentQualifiedName)
	}, maxItems, skipCount), nil
}

func (s *Store) listOrganizations(match func(*organization.Organization) bool, maxItems int, skipCount int64) *page.Page[*organization.Organization] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]orgEntry, 0)
	for _, e := range s.organizations {
		if match(e.org) {
			entries = append(entries, e)
		}
	}
	return pageOrgs(entries, maxItems, skipCount)
}

func pageOrgs(entries []orgEntry, maxItems int, skipCount int64) *page.Page[*organization.Organization] {
	slices.SortFunc(entries, func(a, b orgEntry) int { return cmp.Compare(a.seq, b.seq) })
	result := make([]*organization.Organization, len(entries))
	for i, e := range entries {
		result[i] = e.org.Clone()
	}
	return page.Of(result, maxItems, skipCount)
}

// ──────────────────────────────────────────────────
// Member store
// ──────────────────────────────────────────────────

func (s *Store) StoreMember(ctx context.Context, m *organization.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeGrant(ctx, m.Permission())
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, userID string, orgID id.OrganizationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := grantKey{domain: organization.DomainID, instance: orgID.String(), user: userID}
	if !s.deleteGrant(ctx, k) {
		return fmt.Errorf("member %s of %s: %w", userID, orgID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListMembers(_ context.Context, orgID id.OrganizationID, maxItems int, skipCount int64) (*page.Page[*organization.Member], error) {
	grants := s.listGrants(func(k grantKey) bool {
		return k.domain == organization.DomainID && k.instance == orgID.String()
	})
	members := make([]*organization.Member, 0, len(grants))
	for _, g := range grants {
		m, err := organization.MemberFromPermission(g)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return page.Of(members, maxItems, skipCount), nil
}

func (s *Store) ListOrganizationsByMember(_ context.Context, userID string, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	grants := s.listGrants(func(k grantKey) bool {
		return k.domain == organization.DomainID && k.user == userID
	})
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]orgEntry, 0, len(grants))
	for _, g := range grants {
		if e, ok := s.organizations[g.InstanceID]; ok {
			entries = append(entries, e)
		}
	}
	return pageOrgs(entries, maxItems, skipCount), nil
}

// ──────────────────────────────────────────────────
// Permission grants
// ──────────────────────────────────────────────────

// Permissions returns the grant view for d.
func (s *Store) Permissions(d *permission.Domain) permission.Store {
	return &permissionView{s: s, domain: d}
}

// storeGrant upserts p and returns the previous value. Callers hold s.mu.
func (s *Store) storeGrant(ctx context.Context, p *permission.Permission) *permission.Permission {
	k := grantKey{domain: p.DomainID, instance: p.InstanceID, user: p.UserID}
	prev, ok := s.grants[k]
	s.journal(ctx, s.restoreGrant(k, prev, ok))
	if ok {
		s.grants[k] = grantEntry{perm: p.Clone(), seq: prev.seq}
		return prev.perm.Clone()
	}
	s.grants[k] = grantEntry{perm: p.Clone(), seq: s.next()}
	return nil
}

// deleteGrant removes k and reports whether it existed. Callers hold s.mu.
func (s *Store) deleteGrant(ctx context.Context, k grantKey) bool {
	e, ok := s.grants[k]
	if !ok {
		return false
	}
	s.journal(ctx, s.restoreGrant(k, e, true))
	delete(s.grants, k)
	return true
}

// listGrants returns matching grants in insertion order.
func (s *Store) listGrants(match func(grantKey) bool) []*permission.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]grantEntry, 0)
	for k, e := range s.grants {
		if match(k) {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b grantEntry) int { return cmp.Compare(a.seq, b.seq) })
	result := make([]*permission.Permission, len(entries))
	for i, e := range entries {
		result[i] = e.perm.Clone()
	}
	return result
}

type permissionView struct {
	s      *Store
	domain *permission.Domain
}

func (v *permissionView) Domain() *permission.Domain { return v.domain }

func (v *permissionView) key(userID, instanceID string) grantKey {
	return grantKey{domain: v.domain.ID(), instance: instanceID, user: userID}
}

func (v *permissionView) Get(_ context.Context, userID, instanceID string) (*permission.Permission, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	e, ok := v.s.grants[v.key(userID, instanceID)]
	if !ok {
		return nil, fmt.Errorf("permission %s/%s/%s: %w", v.domain.ID(), instanceID, userID, store.ErrNotFound)
	}
	return e.perm.Clone(), nil
}

func (v *permissionView) GetByInstance(_ context.Context, instanceID string, maxItems int, skipCount int64) (*page.Page[*permission.Permission], error) {
	grants := v.s.listGrants(func(k grantKey) bool {
		return k.domain == v.domain.ID() && k.instance == instanceID
	})
	return page.Of(grants, maxItems, skipCount), nil
}

func (v *permissionView) GetByUser(_ context.Context, userID string) ([]*permission.Permission, error) {
	return v.s.listGrants(func(k grantKey) bool {
		return k.domain == v.domain.ID() && k.user == userID
	}), nil
}

func (v *permissionView) Store(ctx context.Context, p *permission.Permission) (*permission.Permission, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cp := p.Clone()
	cp.DomainID = v.domain.ID()
	return v.s.storeGrant(ctx, cp), nil
}

func (v *permissionView) Remove(ctx context.Context, userID, instanceID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if !v.s.deleteGrant(ctx, v.key(userID, instanceID)) {
		return fmt.Errorf("permission %s/%s/%s: %w", v.domain.ID(), instanceID, userID, store.ErrNotFound)
	}
	return nil
}

func (v *permissionView) Exists(_ context.Context, userID, instanceID, action string) (bool, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	e, ok := v.s.grants[v.key(userID, instanceID)]
	if !ok {
		return false, nil
	}
	return e.perm.Has(action), nil
}
