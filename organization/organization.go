// Package organization defines the Organization tenant entity, organization
// membership and their store interfaces.
package organization

import (
	"time"

	"github.com/xraph/steward/id"
)

// Organization is a node in the tenant forest. QualifiedName is derived
// from the parent chain and is never set independently.
type Organization struct {
	ID            id.OrganizationID  `json:"id" db:"id"`
	Name          string             `json:"name" db:"name"`
	QualifiedName string             `json:"qualified_name" db:"qualified_name"`
	ParentID      *id.OrganizationID `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the organization has no parent.
func (o *Organization) IsRoot() bool {
	return o.ParentID == nil || o.ParentID.IsNil()
}

// Clone returns a copy of o.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	cp := *o
	if o.ParentID != nil {
		pid := *o.ParentID
		cp.ParentID = &pid
	}
	return &cp
}
