package steward

import "context"

// CheckKey identifies one exists check.
type CheckKey struct {
	UserID     string
	DomainID   string
	InstanceID string
	Action     string
}

// Cache provides caching for permission exists checks.
type Cache interface {
	// Get returns a cached result, if available.
	Get(ctx context.Context, key CheckKey) (allowed, ok bool)

	// Set stores a result.
	Set(ctx context.Context, key CheckKey, allowed bool)

	// InvalidateInstance removes all cached results for a domain instance.
	InvalidateInstance(ctx context.Context, domainID, instanceID string)

	// InvalidateUser removes all cached results for a user.
	InvalidateUser(ctx context.Context, userID string)
}
