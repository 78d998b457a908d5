package postgres

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
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	QualifiedName   string    `grove:"qualified_name,notnull"`
	ParentID        *string   `grove:"parent_id"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
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

// ──────────────────────────────────────────────────
// Permission model
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel `grove:"table:steward_permissions"`
	ID              string    `grove:"id,pk"`
	DomainID        string    `grove:"domain_id,notnull"`
	InstanceID      string    `grove:"instance_id,notnull"`
	UserID          string    `grove:"user_id,notnull"`
	Actions         []string  `grove:"actions,type:jsonb"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	now := time.Now().UTC()
	return &permissionModel{
		ID:         id.NewPermissionID().String(),
		DomainID:   p.DomainID,
		InstanceID: p.InstanceID,
		UserID:     p.UserID,
		Actions:    p.Actions,
		CreatedAt:  now,
		UpdatedAt:  now,
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
