package api

// ──────────────────────────────────────────────────
// Permission requests
// ──────────────────────────────────────────────────

// StorePermissionRequest is the body for creating or replacing a grant.
type StorePermissionRequest struct {
	DomainID   string   `json:"domain_id" description:"Permissions domain"`
	InstanceID string   `json:"instance_id,omitempty" description:"Domain instance (omit for domain-wide grants)"`
	UserID     string   `json:"user_id" description:"User receiving the grant"`
	Actions    []string `json:"actions" description:"Actions granted"`
}

// ListDomainsRequest holds query parameters for listing domains.
type ListDomainsRequest struct {
	Domain string `query:"domain" description:"Return only this domain"`
}

// GetPermissionRequest identifies the caller's own grant.
type GetPermissionRequest struct {
	Domain   string `path:"domain" description:"Permissions domain"`
	Instance string `query:"instance" description:"Domain instance"`
}

// ListPermissionsRequest holds parameters for listing grants on an instance.
type ListPermissionsRequest struct {
	Domain   string `path:"domain" description:"Permissions domain"`
	Instance string `query:"instance" description:"Domain instance"`
	Limit    int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset   int    `query:"offset" description:"Results to skip"`
}

// RemovePermissionRequest identifies a grant to remove.
type RemovePermissionRequest struct {
	Domain   string `path:"domain" description:"Permissions domain"`
	Instance string `query:"instance" description:"Domain instance"`
	User     string `query:"user" description:"User whose grant is removed"`
}

// ──────────────────────────────────────────────────
// Organization requests
// ──────────────────────────────────────────────────

// CreateOrganizationRequest is the body for creating an organization.
type CreateOrganizationRequest struct {
	Name   string `json:"name" description:"Organization name"`
	Parent string `json:"parent,omitempty" description:"Parent organization ID"`
}

// UpdateOrganizationRequest is the body for renaming an organization.
type UpdateOrganizationRequest struct {
	OrgID string `path:"orgId" description:"Organization ID"`
	Name  string `json:"name" description:"New organization name"`
}

// GetOrganizationRequest is the path parameter for an organization.
type GetOrganizationRequest struct {
	OrgID string `path:"orgId" description:"Organization ID"`
}

// FindOrganizationRequest looks up an organization by qualified name.
type FindOrganizationRequest struct {
	Name string `query:"name" description:"Qualified organization name"`
}

// ListOrganizationsRequest holds query parameters for listing the
// organizations a user belongs to.
type ListOrganizationsRequest struct {
	User   string `query:"user" description:"Member user ID (default: caller)"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ListChildrenRequest holds parameters for listing child organizations.
type ListChildrenRequest struct {
	OrgID  string `path:"orgId" description:"Parent organization ID"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Member requests
// ──────────────────────────────────────────────────

// ListMembersRequest holds parameters for listing organization members.
type ListMembersRequest struct {
	OrgID  string `path:"orgId" description:"Organization ID"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// SetMemberRequest is the body for adding or updating a member.
type SetMemberRequest struct {
	OrgID   string   `path:"orgId" description:"Organization ID"`
	UserID  string   `json:"user_id" description:"Member user ID"`
	Actions []string `json:"actions" description:"Organization actions granted"`
}

// RemoveMemberRequest identifies a membership to remove.
type RemoveMemberRequest struct {
	OrgID  string `path:"orgId" description:"Organization ID"`
	UserID string `path:"userId" description:"Member user ID"`
}
