// Package user defines the minimal view of user accounts that steward needs
// from an external user service.
package user

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Directory when no user matches.
var ErrNotFound = errors.New("user: not found")

// User is an account known to the external user service.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Directory looks up user accounts.
type Directory interface {
	// GetByName returns the user with the given account name, or an error
	// wrapping ErrNotFound.
	GetByName(ctx context.Context, name string) (*User, error)
}
