package permission

import (
	"errors"
	"fmt"
	"slices"
)

// SetPermissions is the action that lets a user manage other users'
// permissions within a domain. Every domain allows it.
const SetPermissions = "setPermissions"

var (
	// ErrInstanceRequired is returned when a grant for an instance-scoped
	// domain has no instance id.
	ErrInstanceRequired = errors.New("permission: instance id is required")

	// ErrUnsupportedActions is returned when a grant names actions the
	// domain does not declare.
	ErrUnsupportedActions = errors.New("permission: unsupported actions")
)

// Domain describes a category of resources that can be permission-scoped.
// Domains are immutable once built.
type Domain struct {
	id               string
	allowedActions   []string
	instanceRequired bool
}

// NewDomain builds a domain. SetPermissions is always added to the allowed
// actions and duplicates are dropped, preserving first-seen order.
func NewDomain(id string, allowedActions []string, instanceRequired bool) *Domain {
	actions := make([]string, 0, len(allowedActions)+1)
	for _, a := range allowedActions {
		if !slices.Contains(actions, a) {
			actions = append(actions, a)
		}
	}
	if !slices.Contains(actions, SetPermissions) {
		actions = append(actions, SetPermissions)
	}
	return &Domain{id: id, allowedActions: actions, instanceRequired: instanceRequired}
}

// ID returns the domain identifier.
func (d *Domain) ID() string { return d.id }

// AllowedActions returns a copy of the actions this domain supports.
func (d *Domain) AllowedActions() []string { return slices.Clone(d.allowedActions) }

// InstanceRequired reports whether grants must name an instance.
func (d *Domain) InstanceRequired() bool { return d.instanceRequired }

// Allows reports whether action is declared by the domain.
func (d *Domain) Allows(action string) bool {
	return slices.Contains(d.allowedActions, action)
}

// Unsupported returns the actions not declared by the domain, in input order.
func (d *Domain) Unsupported(actions []string) []string {
	var out []string
	for _, a := range actions {
		if !d.Allows(a) {
			out = append(out, a)
		}
	}
	return out
}

// NewPermission builds a grant in this domain after checking the instance
// requirement and the action subset.
func (d *Domain) NewPermission(userID, instanceID string, actions []string) (*Permission, error) {
	if d.instanceRequired && instanceID == "" {
		return nil, fmt.Errorf("domain %q: %w", d.id, ErrInstanceRequired)
	}
	if bad := d.Unsupported(actions); len(bad) > 0 {
		return nil, fmt.Errorf("domain %q does not support %v: %w", d.id, bad, ErrUnsupportedActions)
	}
	if !d.instanceRequired {
		instanceID = ""
	}
	return &Permission{
		UserID:     userID,
		DomainID:   d.id,
		InstanceID: instanceID,
		Actions:    slices.Clone(actions),
	}, nil
}

// Equal reports whether both domains have the same id and the same set of
// allowed actions.
func (d *Domain) Equal(o *Domain) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.id != o.id || len(d.allowedActions) != len(o.allowedActions) {
		return false
	}
	for _, a := range d.allowedActions {
		if !o.Allows(a) {
			return false
		}
	}
	return true
}

func (d *Domain) String() string { return d.id }
