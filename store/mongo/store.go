// Package mongo provides a MongoDB implementation of the steward composite
// store using grove ORM. Migrate creates the collection indexes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/page"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/store"
)

// Collection name constants.
const (
	colOrganizations = "steward_organizations"
	colPermissions   = "steward_permissions"
)

// Compile-time interface checks.
var (
	_ store.Store      = (*Store)(nil)
	_ permission.Store = (*permissionView)(nil)
)

// Store is a MongoDB implementation of the composite steward store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all steward collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("steward/mongo: migrate %s indexes: %w", col, err)
		}
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

// InTx runs fn. Each write is acknowledged on its own; multi-document
// transactions need a replica set and are not used.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// now returns the current UTC time truncated to the millisecond precision
// BSON dates carry.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all steward collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colOrganizations: {
			{
				Keys:    bson.D{{Key: "qualified_name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colPermissions: {
			{
				Keys: bson.D{
					{Key: "domain_id", Value: 1},
					{Key: "instance_id", Value: 1},
					{Key: "user_id", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "domain_id", Value: 1}, {Key: "user_id", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Organization operations
// ──────────────────────────────────────────────────

func (s *Store) CreateOrganization(ctx context.Context, o *organization.Organization) error {
	t := now()
	o.CreatedAt = t
	o.UpdatedAt = t
	if _, err := s.mdb.NewInsert(organizationToModel(o)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("organization %q: %w", o.QualifiedName, store.ErrDuplicate)
		}
		return fmt.Errorf("steward/mongo: create organization: %w", err)
	}
	return nil
}

func (s *Store) UpdateOrganization(ctx context.Context, o *organization.Organization) error {
	o.UpdatedAt = now()
	m := organizationToModel(o)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("organization %q: %w", o.QualifiedName, store.ErrDuplicate)
		}
		return fmt.Errorf("steward/mongo: update organization: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("organization %s: %w", o.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteOrganization(ctx context.Context, orgID id.OrganizationID) error {
	res, err := s.mdb.NewDelete((*organizationModel)(nil)).
		Filter(bson.M{"_id": orgID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("steward/mongo: delete organization: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("organization %s: %w", orgID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*organization.Organization, error) {
	var m organizationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": orgID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("organization %s: %w", orgID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("steward/mongo: get organization: %w", err)
	}
	return organizationFromModel(&m), nil
}

func (s *Store) GetOrganizationByName(ctx context.Context, qualifiedName string) (*organization.Organization, error) {
	var m organizationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"qualified_name": qualifiedName}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("organization %q: %w", qualifiedName, store.ErrNotFound)
		}
		return nil, fmt.Errorf("steward/mongo: get organization by name: %w", err)
	}
	return organizationFromModel(&m), nil
}

func (s *Store) ListOrganizationsByParent(ctx context.Context, parentID id.OrganizationID, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	return s.listOrganizations(ctx, bson.M{"parent_id": parentID.String()}, maxItems, skipCount)
}

func (s *Store) ListSuborganizations(ctx context.Context, parentQualifiedName string, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	prefix := "^" + regexp.QuoteMeta(parentQualifiedName+organization.Separator)
	return s.listOrganizations(ctx, bson.M{"qualified_name": bson.M{"$regex": prefix}}, maxItems, skipCount)
}

func (s *Store) listOrganizations(ctx context.Context, f bson.M, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	total, err := s.mdb.NewFind((*organizationModel)(nil)).
		Filter(f).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("steward/mongo: count organizations: %w", err)
	}

	var models []organizationModel
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if maxItems > 0 {
		q = q.Limit(int64(maxItems))
	}
	if skipCount > 0 {
		q = q.Skip(skipCount)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("steward/mongo: list organizations: %w", err)
	}
	return page.New(organizationsFromModels(models), maxItems, skipCount, total), nil
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
			return nil, fmt.Errorf("steward/mongo: list members: %w", err)
		}
		items = append(items, mem)
	}
	return page.New(items, maxItems, skipCount, grants.TotalCount), nil
}

// ListOrganizationsByMember resolves the user's organization grants first,
// then pages over the matching organizations.
func (s *Store) ListOrganizationsByMember(ctx context.Context, userID string, maxItems int, skipCount int64) (*page.Page[*organization.Organization], error) {
	grants, err := s.members().GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return page.New([]*organization.Organization{}, maxItems, skipCount, 0), nil
	}
	orgIDs := make([]string, len(grants))
	for i, g := range grants {
		orgIDs[i] = g.InstanceID
	}
	return s.listOrganizations(ctx, bson.M{"_id": bson.M{"$in": orgIDs}}, maxItems, skipCount)
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

func (v *permissionView) key(userID, instanceID string) bson.M {
	return bson.M{"domain_id": v.domain.ID(), "instance_id": instanceID, "user_id": userID}
}

func (v *permissionView) find(ctx context.Context, userID, instanceID string) (*permissionModel, error) {
	var m permissionModel
	err := v.s.mdb.NewFind(&m).
		Filter(v.key(userID, instanceID)).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("permission %s/%s/%s: %w", v.domain.ID(), instanceID, userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("steward/mongo: get permission: %w", err)
	}
	return &m, nil
}

func (v *permissionView) Get(ctx context.Context, userID, instanceID string) (*permission.Permission, error) {
	m, err := v.find(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	return permissionFromModel(m), nil
}

func (v *permissionView) GetByInstance(ctx context.Context, instanceID string, maxItems int, skipCount int64) (*page.Page[*permission.Permission], error) {
	f := bson.M{"domain_id": v.domain.ID(), "instance_id": instanceID}
	total, err := v.s.mdb.NewFind((*permissionModel)(nil)).
		Filter(f).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("steward/mongo: count permissions: %w", err)
	}

	var models []permissionModel
	q := v.s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if maxItems > 0 {
		q = q.Limit(int64(maxItems))
	}
	if skipCount > 0 {
		q = q.Skip(skipCount)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("steward/mongo: list permissions: %w", err)
	}

	items := make([]*permission.Permission, len(models))
	for i := range models {
		items[i] = permissionFromModel(&models[i])
	}
	return page.New(items, maxItems, skipCount, total), nil
}

func (v *permissionView) GetByUser(ctx context.Context, userID string) ([]*permission.Permission, error) {
	var models []permissionModel
	err := v.s.mdb.NewFind(&models).
		Filter(bson.M{"domain_id": v.domain.ID(), "user_id": userID}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("steward/mongo: list user permissions: %w", err)
	}
	items := make([]*permission.Permission, len(models))
	for i := range models {
		items[i] = permissionFromModel(&models[i])
	}
	return items, nil
}

// Store upserts the grant and returns the one it replaced, if any. An
// existing document keeps its id and creation time.
func (v *permissionView) Store(ctx context.Context, p *permission.Permission) (*permission.Permission, error) {
	m := permissionToModel(p)
	m.DomainID = v.domain.ID()

	existing, err := v.find(ctx, p.UserID, p.InstanceID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, err := v.s.mdb.NewInsert(m).Exec(ctx)
		if err == nil {
			return nil, nil
		}
		if !mongod.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("steward/mongo: store permission: %w", err)
		}
		// Lost an insert race; replace the winner.
		if existing, err = v.find(ctx, p.UserID, p.InstanceID); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	m.ID = existing.ID
	m.CreatedAt = existing.CreatedAt
	if _, err := v.s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx); err != nil {
		return nil, fmt.Errorf("steward/mongo: store permission: %w", err)
	}
	return permissionFromModel(existing), nil
}

func (v *permissionView) Remove(ctx context.Context, userID, instanceID string) error {
	res, err := v.s.mdb.NewDelete((*permissionModel)(nil)).
		Filter(v.key(userID, instanceID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("steward/mongo: remove permission: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("permission %s/%s/%s: %w", v.domain.ID(), instanceID, userID, store.ErrNotFound)
	}
	return nil
}

func (v *permissionView) Exists(ctx context.Context, userID, instanceID, action string) (bool, error) {
	n, err := v.s.mdb.NewFind((*permissionModel)(nil)).
		Filter(bson.M{
			"domain_id":   v.domain.ID(),
			"instance_id": instanceID,
			"user_id":     userID,
			"actions":     action,
		}).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("steward/mongo: check permission: %w", err)
	}
	return n > 0, nil
}
