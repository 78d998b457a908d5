package steward

import (
	"errors"
	"fmt"

	"github.com/xraph/steward/store"
)

// Error categories. Every error returned by the managers wraps exactly one
// of these so callers can map failures without knowing the specific cause.
var (
	// ErrNotFound is returned when a referenced domain, organization, user
	// or grant does not exist.
	ErrNotFound = errors.New("steward: not found")

	// ErrConflict is returned when an operation would break a business rule.
	ErrConflict = errors.New("steward: conflict")

	// ErrServer is returned for unexpected storage or infrastructure failures.
	ErrServer = errors.New("steward: server error")

	// ErrInvalidArgument is returned when a required argument is missing or
	// malformed.
	ErrInvalidArgument = errors.New("steward: invalid argument")

	// ErrAccessDenied is returned by Enforce when the actor lacks the action.
	ErrAccessDenied = errors.New("steward: access denied")
)

var (
	// ErrDomainNotFound is returned when no store is registered for a domain.
	ErrDomainNotFound = fmt.Errorf("%w: permissions domain", ErrNotFound)

	// ErrPermissionNotFound is returned when a grant does not exist.
	ErrPermissionNotFound = fmt.Errorf("%w: permission", ErrNotFound)

	// ErrOrganizationNotFound is returned when an organization does not exist.
	ErrOrganizationNotFound = fmt.Errorf("%w: organization", ErrNotFound)

	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrUnsupportedActions is returned when a grant names actions its
	// domain does not declare.
	ErrUnsupportedActions = fmt.Errorf("%w: unsupported actions", ErrConflict)

	// ErrLastAdmin is returned when an operation would leave an instance
	// without any holder of setPermissions.
	ErrLastAdmin = fmt.Errorf("%w: removes last admin", ErrConflict)

	// ErrReservedName is returned when an organization name is reserved.
	ErrReservedName = fmt.Errorf("%w: reserved organization name", ErrConflict)

	// ErrDuplicateOrganization is returned when the qualified name is taken.
	ErrDuplicateOrganization = fmt.Errorf("%w: organization already exists", ErrConflict)

	// ErrDuplicateDomain is returned at construction when two stores
	// serve the same domain.
	ErrDuplicateDomain = fmt.Errorf("%w: duplicate permissions domain", ErrServer)

	// ErrInstanceRequired is returned when a grant for an instance-scoped
	// domain names no instance.
	ErrInstanceRequired = fmt.Errorf("%w: instance id is required", ErrInvalidArgument)
)

// serverError wraps an unexpected storage failure.
func serverError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrServer, op, err)
}

// organizationError translates a storage error for an organization lookup.
func organizationError(op, ref string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w %s", ErrOrganizationNotFound, ref)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrDuplicateOrganization, ref)
	default:
		return serverError(op, err)
	}
}
