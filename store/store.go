// Package store defines the aggregate persistence interface. Organizations
// and members each define their own store interface; permission grants are
// reached through per-domain views over one shared table. A single backend
// (postgres, sqlite, mongo, memory) implements all of them.
package store

import (
	"context"
	"errors"

	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
)

var (
	// ErrNotFound is returned (wrapped) by backends for missing rows.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned (wrapped) by backends on unique key violations.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store is the aggregate persistence interface.
type Store interface {
	organization.Store
	organization.MemberStore

	// Permissions returns the grant store for a domain. Views for the same
	// domain id share rows.
	Permissions(d *permission.Domain) permission.Store

	// InTx runs fn in a transaction. Changes made through the store inside
	// fn are discarded when fn returns an error. Nested calls join the
	// outer transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
