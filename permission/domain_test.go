package permission_test

import (
	"errors"
	"testing"

	"github.com/xraph/steward/permission"
)

func TestNewDomainAddsSetPermissions(t *testing.T) {
	d := permission.NewDomain("stack", []string{"read", "read", "write"}, true)

	got := d.AllowedActions()
	want := []string{"read", "write", permission.SetPermissions}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNewDomainKeepsSingleSetPermissions(t *testing.T) {
	d := permission.NewDomain("stack", []string{permission.SetPermissions, "read"}, true)
	if n := len(d.AllowedActions()); n != 2 {
		t.Fatalf("expected 2 actions, got %d", n)
	}
}

func TestAllowedActionsIsCopy(t *testing.T) {
	d := permission.NewDomain("stack", []string{"read"}, true)
	actions := d.AllowedActions()
	actions[0] = "hijack"
	if d.Allows("hijack") {
		t.Fatal("mutating the returned slice changed the domain")
	}
}

func TestNewPermissionRequiresInstance(t *testing.T) {
	d := permission.NewDomain("stack", []string{"read"}, true)

	_, err := d.NewPermission("user1", "", []string{"read"})
	if !errors.Is(err, permission.ErrInstanceRequired) {
		t.Fatalf("expected ErrInstanceRequired, got %v", err)
	}

	p, err := d.NewPermission("user1", "stack1", []string{"read"})
	if err != nil {
		t.Fatalf("NewPermission: %v", err)
	}
	if p.DomainID != "stack" || p.InstanceID != "stack1" || !p.Has("read") {
		t.Fatalf("unexpected permission: %+v", p)
	}
}

func TestNewPermissionRejectsUnsupportedActions(t *testing.T) {
	d := permission.NewDomain("stack", []string{"read"}, true)

	_, err := d.NewPermission("user1", "stack1", []string{"read", "fly", "swim"})
	if !errors.Is(err, permission.ErrUnsupportedActions) {
		t.Fatalf("expected ErrUnsupportedActions, got %v", err)
	}

	bad := d.Unsupported([]string{"read", "fly", "swim"})
	if len(bad) != 2 || bad[0] != "fly" || bad[1] != "swim" {
		t.Fatalf("expected [fly swim], got %v", bad)
	}
}

func TestInstancelessDomainDropsInstance(t *testing.T) {
	d := permission.SystemDomain()
	p, err := d.NewPermission("admin", "ignored", []string{permission.ManageSystem})
	if err != nil {
		t.Fatalf("NewPermission: %v", err)
	}
	if p.InstanceID != "" {
		t.Fatalf("expected empty instance id, got %q", p.InstanceID)
	}
}

func TestSystemDomainExtraActions(t *testing.T) {
	d := permission.SystemDomain("auditLogs")
	for _, a := range []string{permission.ManageSystem, permission.ManageUsers, permission.MonitorSystem, "auditLogs", permission.SetPermissions} {
		if !d.Allows(a) {
			t.Errorf("expected system domain to allow %q", a)
		}
	}
	if d.InstanceRequired() {
		t.Error("system domain must not require an instance")
	}
}

func TestDomainEqual(t *testing.T) {
	a := permission.NewDomain("stack", []string{"read", "write"}, true)
	b := permission.NewDomain("stack", []string{"write", "read"}, false)
	c := permission.NewDomain("stack", []string{"read"}, true)

	if !a.Equal(b) {
		t.Error("domains with same id and action set should be equal")
	}
	if a.Equal(c) {
		t.Error("domains with different action sets should differ")
	}
}

func TestPermissionClone(t *testing.T) {
	p := &permission.Permission{UserID: "u", DomainID: "d", Actions: []string{"a"}}
	cp := p.Clone()
	cp.Actions[0] = "b"
	if p.Actions[0] != "a" {
		t.Fatal("clone shares actions slice")
	}
}
