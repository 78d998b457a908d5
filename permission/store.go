package permission

import (
	"context"

	"github.com/xraph/steward/page"
)

// Store persists grants for exactly one domain.
type Store interface {
	// Domain returns the domain this store serves.
	Domain() *Domain

	// Get returns the grant for a user on an instance.
	Get(ctx context.Context, userID, instanceID string) (*Permission, error)

	// GetByInstance returns one page of the grants on an instance, ordered
	// by creation.
	GetByInstance(ctx context.Context, instanceID string, maxItems int, skipCount int64) (*page.Page[*Permission], error)

	// GetByUser returns every grant held by a user in this domain.
	GetByUser(ctx context.Context, userID string) ([]*Permission, error)

	// Store creates or replaces the grant keyed by (user, instance) and
	// returns the previous value, or nil when the grant is new.
	Store(ctx context.Context, p *Permission) (*Permission, error)

	// Remove deletes the grant for a user on an instance.
	Remove(ctx context.Context, userID, instanceID string) error

	// Exists reports whether the user's grant on the instance includes action.
	Exists(ctx context.Context, userID, instanceID, action string) (bool, error)
}
