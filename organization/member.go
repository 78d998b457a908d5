package organization

import (
	"fmt"
	"slices"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/permission"
)

// Member is a user's grant in the organization domain.
type Member struct {
	UserID         string            `json:"user_id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	Actions        []string          `json:"actions"`
}

// Permission returns the member as an organization-domain grant.
func (m *Member) Permission() *permission.Permission {
	return &permission.Permission{
		UserID:     m.UserID,
		DomainID:   DomainID,
		InstanceID: m.OrganizationID.String(),
		Actions:    slices.Clone(m.Actions),
	}
}

// MemberFromPermission converts an organization-domain grant to a Member.
func MemberFromPermission(p *permission.Permission) (*Member, error) {
	if p.DomainID != DomainID {
		return nil, fmt.Errorf("organization: grant belongs to domain %q", p.DomainID)
	}
	orgID, err := id.ParseOrganizationID(p.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("organization: member instance: %w", err)
	}
	return &Member{
		UserID:         p.UserID,
		OrganizationID: orgID,
		Actions:        slices.Clone(p.Actions),
	}, nil
}
