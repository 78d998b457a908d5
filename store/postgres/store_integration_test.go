//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/steward/store"
	"github.com/xraph/steward/store/storetest"
)

// startPostgres starts a PostgreSQL container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("steward_test"),
		tcpostgres.WithUsername("steward"),
		tcpostgres.WithPassword("steward"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		tctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = container.Terminate(tctx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	return dsn
}

// newTestConn starts a PostgreSQL container and applies the steward schema.
func newTestConn(t *testing.T) *pgx.Conn {
	t.Helper()
	ctx := context.Background()
	dsn := startPostgres(t)

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close(context.Background()) })

	for _, stmt := range []string{createOrganizations, createPermissions} {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	// Re-applying must be harmless.
	if _, err := conn.Exec(ctx, createOrganizations); err != nil {
		t.Fatalf("re-apply schema: %v", err)
	}
	return conn
}

func TestSchemaUniqueKeys(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn(t)

	const insertOrg = `INSERT INTO steward_organizations (id, name, qualified_name) VALUES ($1, $2, $3)`
	if _, err := conn.Exec(ctx, insertOrg, "org_1", "acme", "acme"); err != nil {
		t.Fatal(err)
	}
	_, err := conn.Exec(ctx, insertOrg, "org_2", "acme", "acme")
	if !isUniqueViolation(err) {
		t.Fatalf("expected unique violation on qualified_name, got %v", err)
	}

	const insertPerm = `INSERT INTO steward_permissions (id, domain_id, instance_id, user_id, actions) VALUES ($1, $2, $3, $4, $5)`
	if _, err := conn.Exec(ctx, insertPerm, "perm_1", "organization", "org_1", "u1", []string{"update"}); err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(ctx, insertPerm, "perm_2", "organization", "org_1", "u1", []string{"delete"})
	if !isUniqueViolation(err) {
		t.Fatalf("expected unique violation on grant key, got %v", err)
	}

	// Same user and instance in another domain is a separate grant.
	if _, err := conn.Exec(ctx, insertPerm, "perm_3", "stack", "org_1", "u1", []string{"read"}); err != nil {
		t.Fatal(err)
	}
}

func TestSchemaUpsertReplacesActions(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn(t)

	const upsert = `INSERT INTO steward_permissions (id, domain_id, instance_id, user_id, actions)
VALUES ($1, 'system', '', 'u1', $2)
ON CONFLICT (domain_id, instance_id, user_id) DO UPDATE SET actions = EXCLUDED.actions, updated_at = EXCLUDED.updated_at`

	if _, err := conn.Exec(ctx, upsert, "perm_1", []string{"manageSystem"}); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(ctx, upsert, "perm_2", []string{"monitorSystem", "manageUsers"}); err != nil {
		t.Fatal(err)
	}

	var id string
	var n int
	err := conn.QueryRow(ctx,
		`SELECT id, jsonb_array_length(actions) FROM steward_permissions WHERE domain_id = 'system' AND user_id = 'u1'`,
	).Scan(&id, &n)
	if err != nil {
		t.Fatal(err)
	}
	if id != "perm_1" || n != 2 {
		t.Fatalf("expected original row with replaced actions, got id=%s actions=%d", id, n)
	}
}

func TestSuborganizationPrefixMatch(t *testing.T) {
	ctx := context.Background()
	conn := newTestConn(t)

	for i, qn := range []string{"a_b", "a_b/c", "a_b/c/d", "axb/c", "a_bc"} {
		_, err := conn.Exec(ctx,
			`INSERT INTO steward_organizations (id, name, qualified_name) VALUES ($1, $2, $3)`,
			"org_"+string(rune('a'+i)), qn, qn)
		if err != nil {
			t.Fatal(err)
		}
	}

	var n int
	err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM steward_organizations WHERE qualified_name LIKE $1 ESCAPE '\'`,
		likePrefix("a_b/")+"%",
	).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected only the two descendants of a_b, got %d", n)
	}
}

func TestStoreConformance(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	pgdb := pgdriver.New()
	if err := pgdb.Open(ctx, dsn); err != nil {
		t.Fatal(err)
	}
	db, err := grove.Open(pgdb)
	if err != nil {
		t.Fatal(err)
	}
	s := New(db)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		if _, err := pgdb.Exec(ctx, "TRUNCATE steward_organizations, steward_permissions"); err != nil {
			t.Fatal(err)
		}
		return s
	})
}
