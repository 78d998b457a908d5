package organization

import (
	"context"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/page"
)

// Store defines persistence operations for organizations.
type Store interface {
	// CreateOrganization persists a new organization. Qualified names are
	// unique.
	CreateOrganization(ctx context.Context, o *Organization) error

	// UpdateOrganization persists a changed name or qualified name.
	UpdateOrganization(ctx context.Context, o *Organization) error

	// DeleteOrganization removes an organization by ID.
	DeleteOrganization(ctx context.Context, orgID id.OrganizationID) error

	// GetOrganization retrieves an organization by ID.
	GetOrganization(ctx context.Context, orgID id.OrganizationID) (*Organization, error)

	// GetOrganizationByName retrieves an organization by qualified name.
	GetOrganizationByName(ctx context.Context, qualifiedName string) (*Organization, error)

	// ListOrganizationsByParent returns direct children of parentID.
	ListOrganizationsByParent(ctx context.Context, parentID id.OrganizationID, maxItems int, skipCount int64) (*page.Page[*Organization], error)

	// ListSuborganizations returns every descendant whose qualified name
	// starts with parentQualifiedName followed by "/".
	ListSuborganizations(ctx context.Context, parentQualifiedName string, maxItems int, skipCount int64) (*page.Page[*Organization], error)
}

// MemberStore defines persistence operations for organization members.
// Members share storage with the organization-domain grants.
type MemberStore interface {
	// StoreMember creates or replaces a membership.
	StoreMember(ctx context.Context, m *Member) error

	// RemoveMember deletes a membership.
	RemoveMember(ctx context.Context, userID string, orgID id.OrganizationID) error

	// ListMembers returns the members of an organization.
	ListMembers(ctx context.Context, orgID id.OrganizationID, maxItems int, skipCount int64) (*page.Page[*Member], error)

	// ListOrganizationsByMember returns the organizations a user belongs to.
	ListOrganizationsByMember(ctx context.Context, userID string, maxItems int, skipCount int64) (*page.Page[*Organization], error)
}
