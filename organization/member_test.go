package organization_test

import (
	"testing"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
)

func TestMemberPermissionRoundTrip(t *testing.T) {
	orgID := id.NewOrganizationID()
	m := &organization.Member{UserID: "user1", OrganizationID: orgID, Actions: []string{organization.ActionUpdate}}

	p := m.Permission()
	if p.DomainID != organization.DomainID || p.InstanceID != orgID.String() {
		t.Fatalf("unexpected grant: %+v", p)
	}

	back, err := organization.MemberFromPermission(p)
	if err != nil {
		t.Fatalf("MemberFromPermission: %v", err)
	}
	if back.UserID != "user1" || back.OrganizationID.String() != orgID.String() {
		t.Fatalf("unexpected member: %+v", back)
	}
}

func TestMemberFromPermissionRejectsOtherDomains(t *testing.T) {
	_, err := organization.MemberFromPermission(&permission.Permission{UserID: "u", DomainID: "system"})
	if err == nil {
		t.Fatal("expected error for a non-organization grant")
	}
}

func TestDomain(t *testing.T) {
	d := organization.Domain()
	if d.ID() != organization.DomainID || !d.InstanceRequired() {
		t.Fatal("organization domain must require an instance")
	}
	if len(d.AllowedActions()) != 7 {
		t.Fatalf("expected 7 actions, got %v", d.AllowedActions())
	}
	if !d.Allows(permission.SetPermissions) {
		t.Fatal("organization domain must allow setPermissions")
	}
}
