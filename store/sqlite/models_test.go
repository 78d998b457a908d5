package sqlite

import (
	"errors"
	"testing"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
)

func TestPermissionModelActionsAsJSON(t *testing.T) {
	m, err := permissionToModel(&permission.Permission{
		UserID:     "u1",
		DomainID:   "stack",
		InstanceID: "s1",
		Actions:    []string{"read", "setPermissions"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Actions != `["read","setPermissions"]` {
		t.Fatalf("unexpected actions column: %s", m.Actions)
	}
	if m.ID == "" || m.CreatedAt.IsZero() {
		t.Fatal("expected generated id and timestamps")
	}

	p, err := permissionFromModel(m)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Has("setPermissions") || p.InstanceID != "s1" {
		t.Fatalf("unexpected permission: %+v", p)
	}
}

func TestPermissionFromModelEmptyActions(t *testing.T) {
	p, err := permissionFromModel(&permissionModel{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Actions == nil || len(p.Actions) != 0 {
		t.Fatalf("expected empty non-nil actions, got %#v", p.Actions)
	}

	if _, err := permissionFromModel(&permissionModel{Actions: "{not json"}); err == nil {
		t.Fatal("expected error for malformed actions")
	}
}

func TestOrganizationModelParent(t *testing.T) {
	root := &organization.Organization{ID: id.NewOrganizationID(), Name: "acme", QualifiedName: "acme"}
	if m := organizationToModel(root); m.ParentID != nil {
		t.Fatal("root organization must have no parent column")
	}

	pid := root.ID
	child := &organization.Organization{ID: id.NewOrganizationID(), Name: "dev", QualifiedName: "acme/dev", ParentID: &pid}
	got := organizationFromModel(organizationToModel(child))
	if got.IsRoot() || got.ParentID.String() != root.ID.String() {
		t.Fatalf("parent lost in conversion: %+v", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: steward_organizations.qualified_name (2067)")) {
		t.Fatal("expected unique violation")
	}
	if isUniqueViolation(errors.New("no such table")) || isUniqueViolation(nil) {
		t.Fatal("unexpected unique violation")
	}
}
