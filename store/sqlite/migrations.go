package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"

	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // register the sqlite executor
)

// Migrations is the grove migration group for the steward store (SQLite).
var Migrations = migrate.NewGroup("steward")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_organizations",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS steward_organizations (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    qualified_name  TEXT NOT NULL,
    parent_id       TEXT,
    created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),

    UNIQUE(qualified_name)
);

CREATE INDEX IF NOT EXISTS idx_steward_organizations_parent ON steward_organizations (parent_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS steward_organizations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_permissions",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS steward_permissions (
    id              TEXT PRIMARY KEY,
    domain_id       TEXT NOT NULL,
    instance_id     TEXT NOT NULL DEFAULT '',
    user_id         TEXT NOT NULL,
    actions         TEXT NOT NULL DEFAULT '[]',
    created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),

    UNIQUE(domain_id, instance_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_steward_permissions_user ON steward_permissions (domain_id, user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS steward_permissions`)
				return err
			},
		},
	)
}
