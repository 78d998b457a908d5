package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
)

// ──────────────────────────────────────────────────
// Organization model
// ──────────────────────────────────────────────────

type organizationModel struct {
	grove.BaseModel `grove:"table:steward_organizations"`
	ID              string    `grove:"id,pk"          bson:"_id"`
	Name            string    `grove:"name"           bson:"name"`
	QualifiedName   string    `grove:"qualified_name" bson:"qualified_name"`
	ParentID        *string   `grove:"parent_id"      bson:"parent_id,omitempty"`
	CreatedAt       time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"     bson:"updated_at"`
}

func organizationToModel(o *organization.Organization) *organizationModel {
	m := &organizationModel{
		ID:            o.ID.String(),
		Name:          o.Name,
		QualifiedName: o.QualifiedName,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if !o.IsRoot() {
		s := o.ParentID.String()
		m.ParentID = &s
	}
	return m
}

func organizationFromModel(m *organizationModel) *organization.Organization {
	oid, _ := id.ParseOrganizationID(m.ID) //nolint:errcheck // stored IDs are always valid
	o := &organization.Organization{
		ID:            oid,
		Name:          m.Name,
		QualifiedName: m.QualifiedName,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.ParentID != nil {
		pid, err := id.ParseOrganizationID(*m.ParentID)
		if err == nil {
			o.ParentID = &pid
		}
	}
	return o
}

func organizationsFromModels(models []organizationModel) []*organization.Organization {
	items := make([]*organization.Organization, len(models))
	for i := range models {
		items[i] = organizationFromModel(&models[i])
	}
	return items
}

// ──────────────────────────────────────────────────
// Permission model
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel `grove:"table:steward_permissions"`
	ID              string    `grove:"id,pk"       bson:"_id"`
	DomainID        string    `grove:"domain_id"   bson:"domain_id"`
	InstanceID      string    `grove:"instance_id" bson:"instance_id"`
	UserID          string    `grove:"user_id"     bson:"user_id"`
	Actions         []string  `grove:"actions"     bson:"actions"`
	CreatedAt       time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"  bson:"updated_at"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	t := now()
	actions := p.Actions
	if actions == nil {
		actions = []string{}
	}
	return &permissionModel{
		ID:         id.NewPermissionID().String(),
		DomainID:   p.DomainID,
		InstanceID: p.InstanceID,
		UserID:     p.UserID,
		Actions:    actions,
		CreatedAt:  t,
		UpdatedAt:  t,
	}
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	actions := m.Actions
	if actions == nil {
		actions = []string{}
	}
	return &permission.Permission{
		UserID:     m.UserID,
		DomainID:   m.DomainID,
		InstanceID: m.InstanceID,
		Actions:    actions,
	}
}
