package steward

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/store/memory"
	"github.com/xraph/steward/user"
)

var (
	alice = Actor{UserID: "u-alice", Name: "alice"}
	bob   = Actor{UserID: "u-bob", Name: "bob"}
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := NewEngine(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, s
}

// recorder captures lifecycle events and can veto gating hooks.
type recorder struct {
	mu sync.Mutex

	created  []*permission.Permission
	removed  []*permission.Permission
	persist  []string
	renamed  [][2]string
	before   []string
	orgGone  []string
	members  map[string][]string
	initiate []string

	persistErr error
	beforeErr  error
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnPermissionsCreated(_ context.Context, initiator string, p *permission.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, p)
	r.initiate = append(r.initiate, initiator)
	return nil
}

func (r *recorder) OnPermissionsRemoved(_ context.Context, _ string, p *permission.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, p)
	return nil
}

func (r *recorder) OnOrganizationPersisted(_ context.Context, o *organization.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persist = append(r.persist, o.QualifiedName)
	return r.persistErr
}

func (r *recorder) OnOrganizationRenamed(_ context.Context, _, oldName, newName string, _ *organization.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renamed = append(r.renamed, [2]string{oldName, newName})
	return nil
}

func (r *recorder) OnBeforeOrganizationRemoved(_ context.Context, o *organization.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.before = append(r.before, o.QualifiedName)
	return r.beforeErr
}

func (r *recorder) OnOrganizationRemoved(_ context.Context, _ string, o *organization.Organization, memberIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgGone = append(r.orgGone, o.QualifiedName)
	if r.members == nil {
		r.members = make(map[string][]string)
	}
	r.members[o.QualifiedName] = memberIDs
	return nil
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestNewEngine_RegistersBuiltinDomains(t *testing.T) {
	eng, _ := newTestEngine(t)

	domains := eng.Permissions().Domains()
	if len(domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(domains))
	}
	if domains[0].ID() != permission.SystemDomainID || domains[1].ID() != organization.DomainID {
		t.Fatalf("unexpected domain order: %s, %s", domains[0].ID(), domains[1].ID())
	}
}

func TestNewEngine_ExtraDomain(t *testing.T) {
	s := memory.New()
	stack := permission.NewDomain("stack", []string{"read", "run"}, true)
	eng, err := NewEngine(WithStore(s), WithPermissionStore(s.Permissions(stack)))
	if err != nil {
		t.Fatal(err)
	}
	d, err := eng.Permissions().Domain("stack")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allows(permission.SetPermissions) {
		t.Fatal("registered domain must allow setPermissions")
	}
}

func TestNewEngine_DuplicateDomain(t *testing.T) {
	s := memory.New()
	_, err := NewEngine(WithStore(s), WithPermissionStore(s.Permissions(organization.Domain())))
	if !errors.Is(err, ErrDuplicateDomain) {
		t.Fatalf("expected ErrDuplicateDomain, got %v", err)
	}
	if !errors.Is(err, ErrServer) {
		t.Fatal("duplicate domain must be a server error")
	}
}

func TestSystemExtraActions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SystemExtraActions = []string{"manageCodenvy"}
	eng, _ := newTestEngine(t, WithConfig(cfg))

	d, err := eng.Permissions().Domain(permission.SystemDomainID)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allows("manageCodenvy") || !d.Allows(permission.ManageSystem) {
		t.Fatalf("unexpected system actions: %v", d.AllowedActions())
	}
}

func TestEngineCanAndEnforce(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	org, err := eng.Organizations().Create(ctx, alice, &organization.Organization{Name: "acme"})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := eng.Can(ctx, alice, organization.DomainID, org.ID.String(), organization.ActionUpdate)
	if err != nil || !ok {
		t.Fatalf("creator should be allowed to update: %v %v", ok, err)
	}

	err = eng.Enforce(ctx, bob, organization.DomainID, org.ID.String(), organization.ActionUpdate)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	ok, _ = eng.Can(ctx, Actor{}, organization.DomainID, org.ID.String(), organization.ActionUpdate)
	if ok {
		t.Fatal("anonymous actor must never be allowed")
	}
}

func TestCanManagePermissionsWithSuperPrivileges(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.SuperPrivilegedMode = true
	eng, _ := newTestEngine(t, WithConfig(cfg))

	org, err := eng.Organizations().Create(ctx, alice, &organization.Organization{Name: "acme"})
	if err != nil {
		t.Fatal(err)
	}

	ok, _ := eng.CanManagePermissions(ctx, bob, organization.DomainID, org.ID.String())
	if ok {
		t.Fatal("bob holds nothing yet")
	}

	err = eng.Permissions().Store(ctx, Actor{}, &permission.Permission{
		UserID:   bob.UserID,
		DomainID: permission.SystemDomainID,
		Actions:  []string{permission.ManageSystem},
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err = eng.CanManagePermissions(ctx, bob, organization.DomainID, org.ID.String())
	if err != nil || !ok {
		t.Fatalf("system manager should manage organization grants: %v %v", ok, err)
	}

	// Super privileges cover managing grants, not every action.
	ok, _ = eng.Can(ctx, bob, organization.DomainID, org.ID.String(), organization.ActionDelete)
	if ok {
		t.Fatal("super privileges must not grant regular actions")
	}
}

func TestNotifyUserRemoved(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	orgs := eng.Organizations()

	solo, err := orgs.Create(ctx, alice, &organization.Organization{Name: "solo"})
	if err != nil {
		t.Fatal(err)
	}
	shared, err := orgs.Create(ctx, alice, &organization.Organization{Name: "shared"})
	if err != nil {
		t.Fatal(err)
	}
	if err := orgs.SetMember(ctx, alice, shared.ID, bob.UserID, organization.Domain().AllowedActions()); err != nil {
		t.Fatal(err)
	}

	if err := eng.NotifyUserRemoved(ctx, Actor{}, &user.User{ID: alice.UserID, Name: alice.Name}); err != nil {
		t.Fatal(err)
	}

	if _, err := orgs.GetByID(ctx, solo.ID); !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("sole-member organization should be gone, got %v", err)
	}
	if _, err := orgs.GetByID(ctx, shared.ID); err != nil {
		t.Fatalf("shared organization should survive: %v", err)
	}

	members, err := orgs.GetMembers(ctx, shared.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if members.TotalCount != 1 || members.Items[0].UserID != bob.UserID {
		t.Fatalf("expected only bob to remain, got %+v", members.Items)
	}
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := eng.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}
