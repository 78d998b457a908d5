// Package storetest is a conformance suite for steward store backends.
// Each backend's tests call Run with a constructor for an empty, migrated
// store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/store"
)

// Factory returns an empty store with its schema in place.
type Factory func(t *testing.T) store.Store

var (
	stackDomain = permission.NewDomain("stack", []string{"read", "run"}, true)
	otherDomain = permission.NewDomain("workspace", []string{"read"}, true)
)

// Run exercises every store operation against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("OrganizationCRUD", func(t *testing.T) { testOrganizationCRUD(t, newStore(t)) })
	t.Run("SuborganizationPrefix", func(t *testing.T) { testSuborganizationPrefix(t, newStore(t)) })
	t.Run("ChildrenPaging", func(t *testing.T) { testChildrenPaging(t, newStore(t)) })
	t.Run("GrantStoreReturnsPrevious", func(t *testing.T) { testGrantStoreReturnsPrevious(t, newStore(t)) })
	t.Run("GrantPaging", func(t *testing.T) { testGrantPaging(t, newStore(t)) })
	t.Run("GrantDomainsAreIsolated", func(t *testing.T) { testGrantDomainsAreIsolated(t, newStore(t)) })
	t.Run("Members", func(t *testing.T) { testMembers(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
}

func newOrg(name string, parent *organization.Organization) *organization.Organization {
	o := &organization.Organization{ID: id.NewOrganizationID(), Name: name, QualifiedName: name}
	if parent != nil {
		pid := parent.ID
		o.ParentID = &pid
		o.QualifiedName = organization.QualifiedName(parent.QualifiedName, name)
	}
	return o
}

func mustCreate(t *testing.T, s store.Store, name string, parent *organization.Organization) *organization.Organization {
	t.Helper()
	o := newOrg(name, parent)
	if err := s.CreateOrganization(context.Background(), o); err != nil {
		t.Fatalf("create %q: %v", o.QualifiedName, err)
	}
	return o
}

func mustGrant(t *testing.T, ps permission.Store, userID, instanceID string, actions ...string) {
	t.Helper()
	p, err := ps.Domain().NewPermission(userID, instanceID, actions)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ps.Store(context.Background(), p); err != nil {
		t.Fatalf("store grant for %s: %v", userID, err)
	}
}

func names(orgs []*organization.Organization) []string {
	out := make([]string, len(orgs))
	for i, o := range orgs {
		out[i] = o.QualifiedName
	}
	slices.Sort(out)
	return out
}

func testOrganizationCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()
	parent := mustCreate(t, s, "acme", nil)
	child := mustCreate(t, s, "dev", parent)
	if child.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	if err := s.CreateOrganization(ctx, newOrg("acme", nil)); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.GetOrganization(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.QualifiedName != "acme/dev" || got.Name != "dev" {
		t.Fatalf("unexpected organization %+v", got)
	}
	if got.ParentID == nil || got.ParentID.String() != parent.ID.String() {
		t.Fatalf("expected parent %s, got %v", parent.ID, got.ParentID)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be read back")
	}

	root, err := s.GetOrganizationByName(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if !root.IsRoot() || root.ID.String() != parent.ID.String() {
		t.Fatalf("unexpected root %+v", root)
	}
	if _, err := s.GetOrganizationByName(ctx, "ACME"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("names are case-sensitive, got %v", err)
	}

	got.Name = "ops"
	got.QualifiedName = "acme/ops"
	if err := s.UpdateOrganization(ctx, got); err != nil {
		t.Fatal(err)
	}
	renamed, err := s.GetOrganizationByName(ctx, "acme/ops")
	if err != nil {
		t.Fatal(err)
	}
	if renamed.ID.String() != child.ID.String() {
		t.Fatal("rename must keep the id")
	}

	clash := renamed.Clone()
	clash.QualifiedName = "acme"
	if err := s.UpdateOrganization(ctx, clash); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on rename clash, got %v", err)
	}
	if err := s.UpdateOrganization(ctx, newOrg("ghost", nil)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a missing organization, got %v", err)
	}

	if err := s.DeleteOrganization(ctx, child.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetOrganization(ctx, child.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func testSuborganizationPrefix(t *testing.T, s store.Store) {
	ctx := context.Background()
	ab := mustCreate(t, s, "a_b", nil)
	c := mustCreate(t, s, "c", ab)
	mustCreate(t, s, "deep", c)
	axb := mustCreate(t, s, "axb", nil)
	mustCreate(t, s, "d", axb)
	pct := mustCreate(t, s, "a%", nil)
	mustCreate(t, s, "e", pct)
	az := mustCreate(t, s, "az", nil)
	mustCreate(t, s, "f", az)
	upper := mustCreate(t, s, "A_B", nil)
	mustCreate(t, s, "g", upper)
	mustCreate(t, s, "a_bc", nil)

	cases := []struct {
		parent string
		want   []string
	}{
		{"a_b", []string{"a_b/c", "a_b/c/deep"}},
		{"a%", []string{"a%/e"}},
		{"a_b/c", []string{"a_b/c/deep"}},
		{"axb", []string{"axb/d"}},
		{"missing", []string{}},
	}
	for _, tc := range cases {
		pg, err := s.ListSuborganizations(ctx, tc.parent, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		got := names(pg.Items)
		if !slices.Equal(got, tc.want) {
			t.Fatalf("descendants of %q: expected %v, got %v", tc.parent, tc.want, got)
		}
		if pg.TotalCount != int64(len(tc.want)) {
			t.Fatalf("descendants of %q: expected total %d, got %d", tc.parent, len(tc.want), pg.TotalCount)
		}
	}
}

func testChildrenPaging(t *testing.T, s store.Store) {
	ctx := context.Background()
	parent := mustCreate(t, s, "acme", nil)
	want := make([]string, 0, 5)
	for i := range 5 {
		child := mustCreate(t, s, fmt.Sprintf("team-%d", i), parent)
		mustCreate(t, s, "nested", child)
		want = append(want, child.QualifiedName)
	}

	var seen []*organization.Organization
	var skip int64
	for {
		pg, err := s.ListOrganizationsByParent(ctx, parent.ID, 2, skip)
		if err != nil {
			t.Fatal(err)
		}
		if pg.TotalCount != 5 {
			t.Fatalf("expected 5 children, got %d", pg.TotalCount)
		}
		if pg.Size() > 2 {
			t.Fatalf("page exceeds max items: %d", pg.Size())
		}
		seen = append(seen, pg.Items...)
		if !pg.HasNext() {
			break
		}
		skip = pg.NextSkip()
	}
	if got := names(seen); !slices.Equal(got, want) {
		t.Fatalf("expected children %v, got %v", want, got)
	}
}

func testGrantStoreReturnsPrevious(t *testing.T, s store.Store) {
	ctx := context.Background()
	ps := s.Permissions(stackDomain)

	first, err := stackDomain.NewPermission("u1", "s1", []string{"read"})
	if err != nil {
		t.Fatal(err)
	}
	prev, err := ps.Store(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if prev != nil {
		t.Fatalf("expected no previous grant, got %+v", prev)
	}

	second, err := stackDomain.NewPermission("u1", "s1", []string{"run", permission.SetPermissions})
	if err != nil {
		t.Fatal(err)
	}
	prev, err = ps.Store(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if prev == nil || !slices.Equal(prev.Actions, []string{"read"}) {
		t.Fatalf("expected previous actions [read], got %+v", prev)
	}

	got, err := ps.Get(ctx, "u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.DomainID != "stack" || !got.Has("run") || got.Has("read") {
		t.Fatalf("expected replaced grant, got %+v", got)
	}

	if ok, err := ps.Exists(ctx, "u1", "s1", "run"); err != nil || !ok {
		t.Fatalf("expected run to exist, got %v %v", ok, err)
	}
	if ok, err := ps.Exists(ctx, "u1", "s1", "read"); err != nil || ok {
		t.Fatalf("expected read to be gone, got %v %v", ok, err)
	}
	if ok, err := ps.Exists(ctx, "nobody", "s1", "run"); err != nil || ok {
		t.Fatalf("expected no grant for unknown user, got %v %v", ok, err)
	}

	if err := ps.Remove(ctx, "u1", "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := ps.Get(ctx, "u1", "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := ps.Remove(ctx, "u1", "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing twice, got %v", err)
	}
}

func testGrantPaging(t *testing.T, s store.Store) {
	ctx := context.Background()
	ps := s.Permissions(stackDomain)
	want := make([]string, 0, 7)
	for i := range 7 {
		u := fmt.Sprintf("user-%d", i)
		mustGrant(t, ps, u, "s1", "read")
		want = append(want, u)
	}
	mustGrant(t, ps, "user-0", "s2", "read")

	var seen []string
	var skip int64
	for {
		pg, err := ps.GetByInstance(ctx, "s1", 3, skip)
		if err != nil {
			t.Fatal(err)
		}
		if pg.TotalCount != 7 {
			t.Fatalf("expected 7 grants, got %d", pg.TotalCount)
		}
		for _, p := range pg.Items {
			seen = append(seen, p.UserID)
		}
		if !pg.HasNext() {
			break
		}
		skip = pg.NextSkip()
	}
	slices.Sort(seen)
	if !slices.Equal(seen, want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}

	mine, err := ps.GetByUser(ctx, "user-0")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 grants for user-0, got %d", len(mine))
	}
}

func testGrantDomainsAreIsolated(t *testing.T, s store.Store) {
	ctx := context.Background()
	stacks := s.Permissions(stackDomain)
	workspaces := s.Permissions(otherDomain)
	mustGrant(t, stacks, "u1", "x", "run")

	if _, err := workspaces.Get(ctx, "u1", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("grant leaked across domains: %v", err)
	}
	mustGrant(t, workspaces, "u1", "x", "read")
	got, err := stacks.Get(ctx, "u1", "x")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Has("run") || got.Has("read") {
		t.Fatalf("other domain overwrote grant: %+v", got)
	}

	// A second view of the same domain shares rows.
	if _, err := s.Permissions(stackDomain).Get(ctx, "u1", "x"); err != nil {
		t.Fatal(err)
	}
}

func testMembers(t *testing.T, s store.Store) {
	ctx := context.Background()
	acme := mustCreate(t, s, "acme", nil)
	globex := mustCreate(t, s, "globex", nil)

	for _, m := range []*organization.Member{
		{UserID: "u1", OrganizationID: acme.ID, Actions: []string{organization.ActionUpdate}},
		{UserID: "u2", OrganizationID: acme.ID, Actions: []string{permission.SetPermissions}},
		{UserID: "u1", OrganizationID: globex.ID, Actions: []string{organization.ActionDelete}},
	} {
		if err := s.StoreMember(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	members, err := s.ListMembers(ctx, acme.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if members.TotalCount != 2 {
		t.Fatalf("expected 2 members, got %d", members.TotalCount)
	}
	for _, m := range members.Items {
		if m.OrganizationID.String() != acme.ID.String() {
			t.Fatalf("member of wrong organization: %+v", m)
		}
	}

	orgs, err := s.ListOrganizationsByMember(ctx, "u1", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(orgs.Items); !slices.Equal(got, []string{"acme", "globex"}) {
		t.Fatalf("expected u1 in acme and globex, got %v", got)
	}

	// Memberships are organization-domain grants.
	grant, err := s.Permissions(organization.Domain()).Get(ctx, "u2", acme.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if !grant.Has(permission.SetPermissions) {
		t.Fatalf("unexpected membership grant %+v", grant)
	}

	if err := s.RemoveMember(ctx, "u1", acme.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveMember(ctx, "u1", acme.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing twice, got %v", err)
	}
	orgs, err = s.ListOrganizationsByMember(ctx, "u1", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if orgs.TotalCount != 1 {
		t.Fatalf("expected u1 in one organization, got %d", orgs.TotalCount)
	}
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	kept := mustCreate(t, s, "kept", nil)
	boom := errors.New("boom")
	dropped := newOrg("dropped", nil)

	err := s.InTx(ctx, func(ctx context.Context) error {
		if err := s.CreateOrganization(ctx, dropped); err != nil {
			return err
		}
		if err := s.StoreMember(ctx, &organization.Member{UserID: "u1", OrganizationID: dropped.ID, Actions: []string{permission.SetPermissions}}); err != nil {
			return err
		}
		renamed := kept.Clone()
		renamed.Name = "renamed"
		renamed.QualifiedName = "renamed"
		if err := s.UpdateOrganization(ctx, renamed); err != nil {
			return err
		}
		// Reads inside the transaction see its writes.
		if _, err := s.GetOrganizationByName(ctx, "dropped"); err != nil {
			return fmt.Errorf("read own write: %w", err)
		}
		// Nested calls join the outer transaction.
		return s.InTx(ctx, func(context.Context) error { return boom })
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := s.GetOrganization(ctx, dropped.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("organization created in a failed transaction survived: %v", err)
	}
	if _, err := s.Permissions(organization.Domain()).Get(ctx, "u1", dropped.ID.String()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("membership written in a failed transaction survived: %v", err)
	}
	if _, err := s.GetOrganizationByName(ctx, "kept"); err != nil {
		t.Fatalf("rename in a failed transaction was not undone: %v", err)
	}
	if err := s.CreateOrganization(ctx, newOrg("dropped", nil)); err != nil {
		t.Fatalf("name of a rolled back organization is still taken: %v", err)
	}
}

func testTxCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := newOrg("acme", nil)
	err := s.InTx(ctx, func(ctx context.Context) error {
		if err := s.CreateOrganization(ctx, o); err != nil {
			return err
		}
		return s.StoreMember(ctx, &organization.Member{UserID: "u1", OrganizationID: o.ID, Actions: []string{permission.SetPermissions}})
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetOrganization(ctx, o.ID); err != nil {
		t.Fatalf("committed organization missing: %v", err)
	}
	members, err := s.ListMembers(ctx, o.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if members.TotalCount != 1 {
		t.Fatalf("expected committed member, got %d", members.TotalCount)
	}
}
