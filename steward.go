// Package steward provides multi-tenant permissions and organization
// management for Go.
//
// Permission grants are scoped by domain (e.g. "system", "organization").
// Each domain declares its allowed actions and whether grants must name an
// instance, and is backed by exactly one store. Organizations form a forest
// of tenants with slash-delimited qualified names; membership in an
// organization is itself a grant in the organization domain.
//
//	eng, err := steward.NewEngine(
//	    steward.WithStore(memory.New()),
//	)
//	org, err := eng.Organizations().Create(ctx, actor, &organization.Organization{Name: "acme"})
//	ok, err := eng.Permissions().Exists(ctx, actor.UserID, organization.DomainID, org.ID.String(), organization.ActionUpdate)
package steward

// Actor is the principal performing an operation. The zero value is the
// anonymous actor.
type Actor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// IsAnonymous reports whether the actor carries no user.
func (a Actor) IsAnonymous() bool { return a.UserID == "" }

// initiator is the name reported in lifecycle events, empty when anonymous.
func (a Actor) initiator() string {
	if a.IsAnonymous() {
		return ""
	}
	return a.Name
}
