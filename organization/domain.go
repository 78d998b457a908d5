package organization

import "github.com/xraph/steward/permission"

// DomainID identifies the organization permission domain.
const DomainID = "organization"

// Organization domain actions.
const (
	ActionUpdate                 = "update"
	ActionDelete                 = "delete"
	ActionManageSuborganizations = "manageSuborganizations"
	ActionManageResources        = "manageResources"
	ActionCreateWorkspaces       = "createWorkspaces"
	ActionManageWorkspaces       = "manageWorkspaces"
)

// Domain returns the organization permission domain. Membership in an
// organization is a grant in this domain with the organization id as the
// instance.
func Domain() *permission.Domain {
	return permission.NewDomain(DomainID, []string{
		ActionUpdate,
		ActionDelete,
		ActionManageSuborganizations,
		ActionManageResources,
		ActionCreateWorkspaces,
		ActionManageWorkspaces,
	}, true)
}
