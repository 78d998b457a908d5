// Package permission defines permission grants, the domains that scope them
// and the per-domain store interface.
package permission

import "slices"

// Permission grants a user a set of actions within a domain. InstanceID is
// empty for domains that do not require an instance.
type Permission struct {
	UserID     string   `json:"user_id"`
	DomainID   string   `json:"domain_id"`
	InstanceID string   `json:"instance_id,omitempty"`
	Actions    []string `json:"actions"`
}

// Has reports whether the grant includes action.
func (p *Permission) Has(action string) bool {
	return slices.Contains(p.Actions, action)
}

// Clone returns a deep copy of p.
func (p *Permission) Clone() *Permission {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Actions = slices.Clone(p.Actions)
	return &cp
}
