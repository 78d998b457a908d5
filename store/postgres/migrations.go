package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"

	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // register the pg executor
)

// Migrations is the grove migration group for the steward store (PostgreSQL).
var Migrations = migrate.NewGroup("steward")

const createOrganizations = `
CREATE TABLE IF NOT EXISTS steward_organizations (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    qualified_name  TEXT NOT NULL,
    parent_id       TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(qualified_name)
);

CREATE INDEX IF NOT EXISTS idx_steward_organizations_parent ON steward_organizations (parent_id);
CREATE INDEX IF NOT EXISTS idx_steward_organizations_qn_prefix ON steward_organizations (qualified_name text_pattern_ops);
`

const createPermissions = `
CREATE TABLE IF NOT EXISTS steward_permissions (
    id              TEXT PRIMARY KEY,
    domain_id       TEXT NOT NULL,
    instance_id     TEXT NOT NULL DEFAULT '',
    user_id         TEXT NOT NULL,
    actions         JSONB NOT NULL DEFAULT '[]',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(domain_id, instance_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_steward_permissions_user ON steward_permissions (domain_id, user_id);
`

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_organizations",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, createOrganizations)
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
				_, err := exec.Exec(ctx, createPermissions)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS steward_permissions`)
				return err
			},
		},
	)
}
