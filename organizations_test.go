package steward

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/store/memory"
)

func newTestOrganizations(t *testing.T, cfg Config) (*OrganizationManager, *recorder, *memory.Store) {
	t.Helper()
	rec := &recorder{}
	eng, s := newTestEngine(t, WithConfig(cfg), WithPlugin(rec))
	return eng.Organizations(), rec, s
}

func mustCreate(t *testing.T, m *OrganizationManager, name string, parent *organization.Organization) *organization.Organization {
	t.Helper()
	o := &organization.Organization{Name: name}
	if parent != nil {
		pid := parent.ID
		o.ParentID = &pid
	}
	created, err := m.Create(context.Background(), alice, o)
	if err != nil {
		t.Fatal(err)
	}
	return created
}

func TestQualifiedNameDerivationAndRename(t *testing.T) {
	ctx := context.Background()
	m, rec, _ := newTestOrganizations(t, DefaultConfig())

	root := mustCreate(t, m, "root", nil)
	child := mustCreate(t, m, "child", root)
	leaf := mustCreate(t, m, "leaf", child)

	if child.QualifiedName != "root/child" {
		t.Fatalf("expected root/child, got %s", child.QualifiedName)
	}
	if leaf.QualifiedName != "root/child/leaf" {
		t.Fatalf("expected root/child/leaf, got %s", leaf.QualifiedName)
	}

	renamed, err := m.Update(ctx, alice, child.ID, &organization.Organization{Name: "kid"})
	if err != nil {
		t.Fatal(err)
	}
	if renamed.QualifiedName != "root/kid" {
		t.Fatalf("expected root/kid, got %s", renamed.QualifiedName)
	}

	got, err := m.GetByID(ctx, leaf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.QualifiedName != "root/kid/leaf" {
		t.Fatalf("expected root/kid/leaf, got %s", got.QualifiedName)
	}
	if _, err := m.GetByName(ctx, "root/child/leaf"); !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("old qualified name should be gone, got %v", err)
	}

	if len(rec.renamed) != 1 || rec.renamed[0] != [2]string{"child", "kid"} {
		t.Fatalf("unexpected rename events: %v", rec.renamed)
	}
}

func TestRenameRebasesManyDescendants(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.PageSize = 2
	m, _, _ := newTestOrganizations(t, cfg)

	root := mustCreate(t, m, "root", nil)
	var subs []*organization.Organization
	for i := range 5 {
		c := mustCreate(t, m, fmt.Sprintf("c%d", i), root)
		subs = append(subs, c, mustCreate(t, m, "g", c))
	}
	sibling := mustCreate(t, m, "rootless", nil)

	if _, err := m.Update(ctx, alice, root.ID, &organization.Organization{Name: "top"}); err != nil {
		t.Fatal(err)
	}

	all, err := m.GetSuborganizations(ctx, "top", 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if all.TotalCount != int64(len(subs)) {
		t.Fatalf("expected %d descendants under top, got %d", len(subs), all.TotalCount)
	}
	got, _ := m.GetByID(ctx, sibling.ID)
	if got.QualifiedName != "rootless" {
		t.Fatalf("unrelated organization was renamed to %s", got.QualifiedName)
	}
}

func TestUpdateWithSameNameDoesNotFireRename(t *testing.T) {
	ctx := context.Background()
	m, rec, _ := newTestOrganizations(t, DefaultConfig())
	o := mustCreate(t, m, "acme", nil)

	if _, err := m.Update(ctx, alice, o.ID, &organization.Organization{Name: "acme"}); err != nil {
		t.Fatal(err)
	}
	if len(rec.renamed) != 0 {
		t.Fatal("unchanged name must not publish a rename")
	}
}

func TestCreateUnderMissingParent(t *testing.T) {
	m, _, _ := newTestOrganizations(t, DefaultConfig())
	missing := id.NewOrganizationID()
	_, err := m.Create(context.Background(), alice, &organization.Organization{Name: "x", ParentID: &missing})
	if !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestOrganizations(t, DefaultConfig())

	tests := []struct {
		name  string
		actor Actor
		org   *organization.Organization
	}{
		{"nil organization", alice, nil},
		{"empty name", alice, &organization.Organization{}},
		{"separator in name", alice, &organization.Organization{Name: "a/b"}},
		{"anonymous", Actor{}, &organization.Organization{Name: "acme"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Create(ctx, tt.actor, tt.org); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestDuplicateQualifiedName(t *testing.T) {
	m, _, _ := newTestOrganizations(t, DefaultConfig())
	mustCreate(t, m, "acme", nil)
	_, err := m.Create(context.Background(), alice, &organization.Organization{Name: "acme"})
	if !errors.Is(err, ErrDuplicateOrganization) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
}

func TestReservedNames(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.ReservedNames = []string{"Admin", "root/system"}
	m, _, _ := newTestOrganizations(t, cfg)

	if _, err := m.Create(ctx, alice, &organization.Organization{Name: "ADMIN"}); !errors.Is(err, ErrReservedName) {
		t.Fatalf("expected ErrReservedName, got %v", err)
	}

	root := mustCreate(t, m, "root", nil)
	if _, err := m.Create(ctx, alice, &organization.Organization{Name: "System", ParentID: &root.ID}); !errors.Is(err, ErrReservedName) {
		t.Fatalf("expected reserved qualified name to be rejected, got %v", err)
	}

	o := mustCreate(t, m, "acme", nil)
	if _, err := m.Update(ctx, alice, o.ID, &organization.Organization{Name: "admin"}); !errors.Is(err, ErrReservedName) {
		t.Fatalf("expected ErrReservedName on rename, got %v", err)
	}
	got, err := m.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "acme" || got.QualifiedName != "acme" {
		t.Fatalf("rejected rename changed the organization: %+v", got)
	}
}

func TestUpdateMissingOrganization(t *testing.T) {
	m, _, _ := newTestOrganizations(t, DefaultConfig())
	_, err := m.Update(context.Background(), alice, id.NewOrganizationID(), &organization.Organization{Name: "x"})
	if !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound, got %v", err)
	}
}

func TestCreatorBootstrap(t *testing.T) {
	ctx := context.Background()
	m, rec, _ := newTestOrganizations(t, DefaultConfig())
	o := mustCreate(t, m, "acme", nil)

	orgs, err := m.GetByMember(ctx, alice.UserID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if orgs.TotalCount != 1 || orgs.Items[0].ID.String() != o.ID.String() {
		t.Fatalf("creator should be a member of the new organization, got %+v", orgs.Items)
	}

	members, err := m.GetMembers(ctx, o.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if members.TotalCount != 1 {
		t.Fatalf("expected exactly one member, got %d", members.TotalCount)
	}
	want := organization.Domain().AllowedActions()
	if len(members.Items[0].Actions) != len(want) {
		t.Fatalf("creator should hold all %d actions, got %v", len(want), members.Items[0].Actions)
	}

	if len(rec.persist) != 1 || rec.persist[0] != "acme" {
		t.Fatalf("expected one persisted event, got %v", rec.persist)
	}
}

func TestPersistedHookVetoesCreate(t *testing.T) {
	ctx := context.Background()
	m, rec, _ := newTestOrganizations(t, DefaultConfig())
	rec.persistErr = errors.New("quota exceeded")

	_, err := m.Create(ctx, alice, &organization.Organization{Name: "acme"})
	if !errors.Is(err, rec.persistErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if _, err := m.GetByName(ctx, "acme"); !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("vetoed organization must not be visible, got %v", err)
	}
	orgs, _ := m.GetByMember(ctx, alice.UserID, 10, 0)
	if orgs.TotalCount != 0 {
		t.Fatal("vetoed organization left a membership behind")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestOrganizations(t, DefaultConfig())
	o := mustCreate(t, m, "acme", nil)

	if err := m.Remove(ctx, alice, o.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove(ctx, alice, o.ID); err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}
}

func TestRemoveCascadesDepthFirst(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.PageSize = 2
	m, rec, _ := newTestOrganizations(t, cfg)

	root := mustCreate(t, m, "root", nil)
	for i := range 5 {
		c := mustCreate(t, m, fmt.Sprintf("c%d", i), root)
		mustCreate(t, m, "leaf", c)
	}
	other := mustCreate(t, m, "other", nil)

	if err := m.Remove(ctx, alice, root.ID); err != nil {
		t.Fatal(err)
	}

	if len(rec.orgGone) != 11 {
		t.Fatalf("expected 11 removed organizations, got %d", len(rec.orgGone))
	}
	if rec.orgGone[len(rec.orgGone)-1] != "root" {
		t.Fatalf("root must be removed last, got %v", rec.orgGone)
	}
	for i, qn := range rec.orgGone {
		if qn == "root/c0" && (i == 0 || rec.orgGone[i-1] != "root/c0/leaf") {
			t.Fatalf("child removed before its leaf: %v", rec.orgGone)
		}
	}
	if len(rec.before) != 11 {
		t.Fatalf("expected 11 before-removal events, got %d", len(rec.before))
	}

	left, err := m.GetSuborganizations(ctx, "root", 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if left.TotalCount != 0 {
		t.Fatalf("expected no descendants left, got %d", left.TotalCount)
	}
	if _, err := m.GetByID(ctx, other.ID); err != nil {
		t.Fatalf("unrelated organization removed: %v", err)
	}
}

func TestRemoveDrainsAllMembers(t *testing.T) {
	ctx := context.Background()
	m, rec, s := newTestOrganizations(t, DefaultConfig())
	o := mustCreate(t, m, "big", nil)

	for i := range 249 {
		err := s.StoreMember(ctx, &organization.Member{
			UserID:         fmt.Sprintf("user-%03d", i),
			OrganizationID: o.ID,
			Actions:        []string{organization.ActionUpdate},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := m.Remove(ctx, alice, o.ID); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.members["big"]); got != 250 {
		t.Fatalf("expected 250 removed members, got %d", got)
	}
	members, err := m.GetMembers(ctx, o.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if members.TotalCount != 0 {
		t.Fatalf("expected no members left, got %d", members.TotalCount)
	}
}

func TestBeforeRemovalHookVetoesRemove(t *testing.T) {
	ctx := context.Background()
	m, rec, _ := newTestOrganizations(t, DefaultConfig())
	o := mustCreate(t, m, "acme", nil)
	rec.beforeErr = errors.New("has running workspaces")

	if err := m.Remove(ctx, alice, o.ID); !errors.Is(err, rec.beforeErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if _, err := m.GetByID(ctx, o.ID); err != nil {
		t.Fatalf("vetoed organization must remain: %v", err)
	}
}

func TestGetByParentListsDirectChildrenOnly(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestOrganizations(t, DefaultConfig())
	root := mustCreate(t, m, "root", nil)
	child := mustCreate(t, m, "child", root)
	mustCreate(t, m, "leaf", child)

	direct, err := m.GetByParent(ctx, root.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if direct.TotalCount != 1 {
		t.Fatalf("expected 1 direct child, got %d", direct.TotalCount)
	}
	all, err := m.GetSuborganizations(ctx, "root", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if all.TotalCount != 2 {
		t.Fatalf("expected 2 descendants, got %d", all.TotalCount)
	}
}

func TestMembersFollowLastAdminRule(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestOrganizations(t, DefaultConfig())
	o := mustCreate(t, m, "acme", nil)

	if err := m.RemoveMember(ctx, alice, o.ID, alice.UserID); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
	if err := m.SetMember(ctx, alice, o.ID, bob.UserID, []string{organization.ActionUpdate}); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveMember(ctx, alice, o.ID, bob.UserID); err != nil {
		t.Fatal(err)
	}
	if err := m.SetMember(ctx, alice, id.NewOrganizationID(), bob.UserID, []string{organization.ActionUpdate}); !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound, got %v", err)
	}
	if err := m.SetMember(ctx, alice, o.ID, bob.UserID, []string{"fly"}); !errors.Is(err, ErrUnsupportedActions) {
		t.Fatalf("expected ErrUnsupportedActions, got %v", err)
	}
}

// gatedStore pauses the first armed GetOrganization call after it has read
// the organization, until release is closed.
type gatedStore struct {
	*memory.Store
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*organization.Organization, error) {
	o, err := g.Store.GetOrganization(ctx, orgID)
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	g.mu.Unlock()
	if armed {
		close(g.entered)
		<-g.release
	}
	return o, err
}

func TestSetMemberRacingRemoveLeavesNoOrphan(t *testing.T) {
	ctx := context.Background()
	gs := &gatedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	eng, err := NewEngine(WithStore(gs))
	if err != nil {
		t.Fatal(err)
	}
	m := eng.Organizations()
	o := mustCreate(t, m, "acme", nil)

	gs.mu.Lock()
	gs.armed = true
	gs.mu.Unlock()

	setDone := make(chan error, 1)
	go func() {
		setDone <- m.SetMember(ctx, alice, o.ID, bob.UserID, []string{organization.ActionUpdate})
	}()
	<-gs.entered

	removeDone := make(chan error, 1)
	go func() { removeDone <- m.Remove(ctx, alice, o.ID) }()

	// Give Remove time to run ahead if nothing orders it after SetMember.
	select {
	case err := <-removeDone:
		removeDone <- err
	case <-time.After(50 * time.Millisecond):
	}
	close(gs.release)

	if err := <-setDone; err != nil && !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("unexpected SetMember error: %v", err)
	}
	if err := <-removeDone; err != nil {
		t.Fatal(err)
	}

	if _, err := m.GetByID(ctx, o.ID); !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("expected organization removed, got %v", err)
	}
	orgs, err := m.GetByMember(ctx, bob.UserID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	members, err := m.GetMembers(ctx, o.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if members.TotalCount != 0 {
		t.Fatalf("membership of a removed organization survived: %d rows, %d visible orgs", members.TotalCount, orgs.TotalCount)
	}
}
