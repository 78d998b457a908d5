// Package sqlite provides a SQLite implementation of the steward composite
// store using grove ORM with Go-based migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/page"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/store"
)

// Compile-time interface checks.
var (
	_ store.Store      = (*Store)(nil)
	_ permission.Store = (*permissionView)(nil)
)

// Store is a SQLite implementation of the composite steward store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("steward/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("steward/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier builds queries against the database or against an open
// transaction.
type querier interface {
	NewSelect(model ...any) *sqlitedriver.SelectQuery
	NewInsert(model any) *sqlitedriver.InsertQuery
	NewUpdate(model any) *sqlitedriver.UpdateQuery
	NewDelete(model any) *sqlitedriver.DeleteQuery
}

type txQuerier interface {
	querier
	Commit() error
	Rollback() error
}

type txKey struct{}

type txConn struct {
	s  *Store
	tx txQuerier
}

// InTx runs fn in a database transaction carried in ctx. Every store call
// made with that ctx runs inside it. Nested calls join the outer
// transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("steward/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if err := fn(context.WithValue(ctx, txKey{}, &txConn{s: s, tx: tx})); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("steward/sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) txFrom(ctx context.Context) *txConn {
	if t, ok := ctx.Value(txKey{}).(*txConn); ok && t.s == s {
		return t
	}
	return nil
}

// conn returns the transaction in ctx, or the database handle.
func (s *Store) conn(ctx context.Context) querier {
	if t := s.txFrom(ctx); t != nil {
		return t.tx
	}
	return s.sdb
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches the constraint error text of the SQLite driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// likePrefix escapes LIKE metacharacters in prefix.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}

// ──────────────────────────────────────────────────
// Organization operations
// ──────────────────────────────────────────────────

func (s *Store) CreateOrganization(ctx context.Context, o *organization.Organization) error {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	_, err := s.conn(ctx).NewInsert(organizationToModel(o)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("organization %q: %w", o.QualifiedName, store.ErrDuplicate)
		}
		return fmt.Errorf("steward/sqlite: create organization: %w", err)
	}
	return nil
}

func (s *Store) UpdateOrganization(ctx context.Context, o *organization.Organization) error {
	o.UpdatedAt = time.Now().UTC()
	res, err := s.conn(ctx).NewUpdate(organizationToModel(o)).WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("organization %q: %w", o.QualifiedName, store.ErrDuplicate)
		}
		return fmt.Errorf("steward/sqlite: update organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("steward/sqlite: update organization rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("organization %s: %w", o.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteOrganization(ctx context.Context, orgID id.OrganizationID) error {
	res, err := s.conn(ctx).NewDelete((*organizationModel)(nil)).
		Where("id = ?", orgID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("steward/sqlite: delete organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("steward/sqlite: delete organization rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("organization %s: %w", orgID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*organization.Organization, error) {
	m := new(organizationModel)
	err := s.conn(ctx).NewSelect(m).Where("id = ?", orgID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("organization %s: %w", orgID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("steward/sqlite: get organization: %w", err)
	}
	return organizationFromModel(m), nil
}

func (s *Store) GetOrganizationByName(ctx context.Context, qualifiedName string) (*organization.Organization, error) {
	m := new(organizationModel)
	err := s.conn(ctx).NewSelect(m).Where("qualified_name = ?", qualifiedName).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("organization %q: %w", qualifiedName, store.ErrNotFound)
		}
		return nil, fmt.Errorf("steward/sqlite: get organization by name: %w", err)
	}
	return organizationFromModel(m), nil
}

func (s *Store) ListOrganizationsByParent(ctx context.Context, parentID id.OrganizationID, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	return s.listOrganizations(ctx, maxItems, skipCount, "parent_id = ?", parentID.String())
}

func (s *Store) ListSuborganizations(ctx context.Context, parentQualifiedName string, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	prefix := parentQualifiedName + organization.Separator
	// LIKE ignores ASCII case in SQLite; the substr match keeps it exact.
	return s.listOrganizations(ctx, maxItems, skipCount,
		`qualified_name LIKE ? ESCAPE '\' AND substr(qualified_name, 1, length(?)) = ?`,
		likePrefix(prefix)+"%", prefix, prefix)
}

func (s *Store) listOrganizations(ctx context.Context, maxItems int, skipCount int64, where string, args ...any) (*page.Page[*organization.Organization], error) {
	total, err := s.conn(ctx).NewSelect((*organizationModel)(nil)).Where(where, args...).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("steward/sqlite: count organizations: %w", err)
	}

	var models []organizationModel
	q := s.conn(ctx).NewSelect(&models).Where(where, args...).OrderExpr("created_at ASC, id ASC")
	if maxItems > 0 {
		q = q.Limit(maxItems)
	}
	if skipCount > 0 {
		q = q.Offset(int(skipCount))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("steward/sqlite: list organizations: %w", err)
	}

	items := make([]*organization.Organization, len(models))
	for i := range models {
		items[i] = organizationFromModel(&models[i])
	}
	return page.New(items, maxItems, skipCount, total), nil
}

// ──────────────────────────────────────────────────
// Member operations
// ──────────────────────────────────────────────────

func (s *Store) StoreMember(ctx context.Context, m *organization.Member) error {
	_, err := s.members().Store(ctx, m.Permission())
	return err
}

func (s *Store) RemoveMember(ctx context.Context, userID string, orgID id.OrganizationID) error {
	return s.members().Remove(ctx, userID, orgID.String())
}

func (s *Store) ListMembers(ctx context.Context, orgID id.OrganizationID, maxItems int, skipCount int64) (*page.Page[*organization.Member], error) {
	grants, err := s.members().GetByInstance(ctx, orgID.String(), maxItems, skipCount)
	if err != nil {
		return nil, err
	}
	items := make([]*organization.Member, 0, len(grants.Items))
	for _, g := range grants.Items {
		mem, err := organization.MemberFromPermission(g)
		if err != nil {
			return nil, fmt.Errorf("steward/sqlite: list members: %w", err)
		}
		items = append(items, mem)
	}
	return page.New(items, maxItems, skipCount, grants.TotalCount), nil
}

func (s *Store) ListOrganizationsByMember(ctx context.Context, userID string, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	return s.listOrganizations(ctx, maxItems, skipCount,
		"id IN (SELECT instance_id FROM steward_permissions WHERE domain_id = ? AND user_id = ?)",
		organization.DomainID, userID)
}

func (s *Store) members() *permissionView {
	return &permissionView{s: s, domain: organization.Domain()}
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

// Permissions returns the grant store for a domain.
func (s *Store) Permissions(d *permission.Domain) permission.Store {
	return &permissionView{s: s, domain: d}
}

type permissionView struct {
	s      *Store
	domain *permission.Domain
}

func (v *permissionView) Domain() *permission.Domain { return v.domain }

func (v *permissionView) Get(ctx context.Context, userID, instanceID string) (*permission.Permission, error) {
	m := new(permissionModel)
	err := v.s.conn(ctx).NewSelect(m).
		Where("domain_id = ?", v.domain.ID()).
		Where("instance_id = ?", instanceID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission %s/%s/%s: %w", v.domain.ID(), instanceID, userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("steward/sqlite: get permission: %w", err)
	}
	return permissionFromModel(m)
}

func (v *permissionView) GetByInstance(ctx context.Context, instanceID string, maxItems int, skipCount int64) (*page.Page[*permission.Permission], error) {
	total, err := v.s.conn(ctx).NewSelect((*permissionModel)(nil)).
		Where("domain_id = ?", v.domain.ID()).
		Where("instance_id = ?", instanceID).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("steward/sqlite: count permissions: %w", err)
	}

	var models []permissionModel
	q := v.s.conn(ctx).NewSelect(&models).
		Where("domain_id = ?", v.domain.ID()).
		Where("instance_id = ?", instanceID).
		OrderExpr("created_at ASC, id ASC")
	if maxItems > 0 {
		q = q.Limit(maxItems)
	}
	if skipCount > 0 {
		q = q.Offset(int(skipCount))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("steward/sqlite: list permissions: %w", err)
	}

	items, err := permissionsFromModels(models)
	if err != nil {
		return nil, err
	}
	return page.New(items, maxItems, skipCount, total), nil
}

func (v *permissionView) GetByUser(ctx context.Context, userID string) ([]*permission.Permission, error) {
	var models []permissionModel
	err := v.s.conn(ctx).NewSelect(&models).
		Where("domain_id = ?", v.domain.ID()).
		Where("user_id = ?", userID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("steward/sqlite: list user permissions: %w", err)
	}
	return permissionsFromModels(models)
}

// Store upserts the grant and returns the one it replaced, if any.
func (v *permissionView) Store(ctx context.Context, p *permission.Permission) (*permission.Permission, error) {
	prev, err := v.Get(ctx, p.UserID, p.InstanceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	m, err := permissionToModel(p)
	if err != nil {
		return nil, fmt.Errorf("steward/sqlite: store permission: %w", err)
	}
	m.DomainID = v.domain.ID()
	_, err = v.s.conn(ctx).NewInsert(m).
		OnConflict("(domain_id, instance_id, user_id) DO UPDATE SET actions = EXCLUDED.actions, updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("steward/sqlite: store permission: %w", err)
	}
	return prev, nil
}

func (v *permissionView) Remove(ctx context.Context, userID, instanceID string) error {
	res, err := v.s.conn(ctx).NewDelete((*permissionModel)(nil)).
		Where("domain_id = ?", v.domain.ID()).
		Where("instance_id = ?", instanceID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("steward/sqlite: remove permission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("steward/sqlite: remove permission rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("permission %s/%s/%s: %w", v.domain.ID(), instanceID, userID, store.ErrNotFound)
	}
	return nil
}

func (v *permissionView) Exists(ctx context.Context, userID, instanceID, action string) (bool, error) {
	p, err := v.Get(ctx, userID, instanceID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Has(action), nil
}
