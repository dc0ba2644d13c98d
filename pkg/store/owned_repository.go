package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Ownership decides which rows of a table belong to a user.
type Ownership interface {
	// scope restricts db to rows of table owned by ownerID.
	scope(db *gorm.DB, table string, ownerID int64) *gorm.DB
	// authorize checks that a new row referencing ref may be created by ownerID.
	authorize(tx *gorm.DB, ownerID, ref int64) error
}

// DirectOwner is used when the table stores the owning user id itself.
type DirectOwner struct {
	Column string
}

func (o DirectOwner) scope(db *gorm.DB, table string, ownerID int64) *gorm.DB {
	return db.Where(fmt.Sprintf("%s.%s = ?", table, o.Column), ownerID)
}

func (o DirectOwner) authorize(_ *gorm.DB, ownerID, ref int64) error {
	if ref != ownerID {
		return ErrNotFound
	}
	return nil
}

// ParentOwner resolves ownership by joining through a parent table that
// stores the owning user id. Rows carry no owner column of their own.
type ParentOwner struct {
	ParentTable string
	ForeignKey  string
	OwnerColumn string
}

func (o ParentOwner) scope(db *gorm.DB, table string, ownerID int64) *gorm.DB {
	return db.
		Joins(fmt.Sprintf("JOIN %s ON %s.id = %s.%s", o.ParentTable, o.ParentTable, table, o.ForeignKey)).
		Where(fmt.Sprintf("%s.%s = ?", o.ParentTable, o.OwnerColumn), ownerID)
}

func (o ParentOwner) authorize(tx *gorm.DB, ownerID, ref int64) error {
	var count int64
	err := tx.Table(o.ParentTable).
		Where(fmt.Sprintf("id = ? AND %s = ?", o.OwnerColumn), ref, ownerID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// Record is implemented by models kept in an OwnedRepository.
// OwnerRef returns the value checked by the ownership strategy on create:
// the user id for DirectOwner, the parent id for ParentOwner.
type Record[M any] interface {
	*M
	TableName() string
	OwnerRef() int64
}

// Child is a dependent table removed together with its parent row.
type Child struct {
	Table      string
	ForeignKey string
}

// RepositoryConfig parameterizes an OwnedRepository.
type RepositoryConfig struct {
	Ownership     Ownership
	Quota         int
	SearchColumns []string
	Children      []Child
}

// Match is an exact-match predicate on a column of the repository table.
type Match struct {
	Column string
	Value  any
}

// ListQuery narrows a listing. Search is a case-insensitive substring
// matched against any of the configured search columns.
type ListQuery struct {
	Equal  []Match
	Search string
}

// OwnedRepository is a CRUD repository where every operation is filtered by
// the requesting user. Rows owned by someone else behave as absent.
// Each call runs in its own transaction.
type OwnedRepository[M any, P Record[M]] struct {
	db    *gorm.DB
	table string
	cfg   RepositoryConfig
}

// NewOwnedRepository builds a repository for model M.
func NewOwnedRepository[M any, P Record[M]](db *gorm.DB, cfg RepositoryConfig) *OwnedRepository[M, P] {
	var zero M
	return &OwnedRepository[M, P]{
		db:    db,
		table: P(&zero).TableName(),
		cfg:   cfg,
	}
}

func (r *OwnedRepository[M, P]) scoped(tx *gorm.DB, ownerID int64) *gorm.DB {
	q := tx.Model(new(M)).Select(r.table + ".*")
	return r.cfg.Ownership.scope(q, r.table, ownerID)
}

func (r *OwnedRepository[M, P]) load(tx *gorm.DB, ownerID, id int64, dest *M) error {
	err := r.scoped(tx, ownerID).Where(r.table+".id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// List returns owned rows, most recently updated first.
func (r *OwnedRepository[M, P]) List(ctx context.Context, ownerID int64, q ListQuery) ([]M, error) {
	var out []M
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := r.scoped(tx, ownerID)
		for _, m := range q.Equal {
			query = query.Where(fmt.Sprintf("%s.%s = ?", r.table, m.Column), m.Value)
		}
		if search := strings.TrimSpace(q.Search); search != "" && len(r.cfg.SearchColumns) > 0 {
			pattern := "%" + strings.ToLower(search) + "%"
			conds := make([]string, 0, len(r.cfg.SearchColumns))
			args := make([]any, 0, len(r.cfg.SearchColumns))
			for _, col := range r.cfg.SearchColumns {
				conds = append(conds, fmt.Sprintf("LOWER(%s.%s) LIKE ?", r.table, col))
				args = append(args, pattern)
			}
			query = query.Where("("+strings.Join(conds, " OR ")+")", args...)
		}
		return query.
			Order(r.table + ".updated_at DESC").
			Order(r.table + ".id DESC").
			Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one owned row or ErrNotFound.
func (r *OwnedRepository[M, P]) Get(ctx context.Context, ownerID, id int64) (M, error) {
	var m M
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.load(tx, ownerID, id, &m)
	})
	return m, err
}

// Create inserts m after checking ownership of its reference and the quota.
func (r *OwnedRepository[M, P]) Create(ctx context.Context, ownerID int64, m *M) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.cfg.Ownership.authorize(tx, ownerID, P(m).OwnerRef()); err != nil {
			return err
		}
		if r.cfg.Quota > 0 {
			if err := lockOwner(tx, r.table, ownerID); err != nil {
				return fmt.Errorf("lock %s quota: %w", r.table, err)
			}
			var count int64
			if err := r.cfg.Ownership.scope(tx.Model(new(M)), r.table, ownerID).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(r.cfg.Quota) {
				return ErrCapacity
			}
		}
		return tx.Create(m).Error
	})
}

// Update loads an owned row, applies mutate and saves it. updated_at is
// refreshed on every successful update. An error from mutate aborts the
// transaction and is returned as is.
func (r *OwnedRepository[M, P]) Update(ctx context.Context, ownerID, id int64, mutate func(*M) error) (M, error) {
	var m M
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.load(tx, ownerID, id, &m); err != nil {
			return err
		}
		if err := mutate(&m); err != nil {
			return err
		}
		return tx.Save(&m).Error
	})
	return m, err
}

// Delete removes an owned row and its children, returning the removed row.
func (r *OwnedRepository[M, P]) Delete(ctx context.Context, ownerID, id int64) (M, error) {
	var m M
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.load(tx, ownerID, id, &m); err != nil {
			return err
		}
		for _, child := range r.cfg.Children {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", child.Table, child.ForeignKey), id).Error; err != nil {
				return fmt.Errorf("delete %s: %w", child.Table, err)
			}
		}
		res := tx.Delete(&m)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return m, err
}

// Touch refreshes updated_at of an owned row without changing anything else.
func (r *OwnedRepository[M, P]) Touch(ctx context.Context, ownerID, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m M
		if err := r.load(tx, ownerID, id, &m); err != nil {
			return err
		}
		return tx.Model(&m).UpdateColumn("updated_at", time.Now().UTC()).Error
	})
}

// lockOwner serializes quota checks for one owner on Postgres. SQLite runs
// with a single connection, so writers are already serialized there.
func lockOwner(tx *gorm.DB, scope string, ownerID int64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(scope, ownerID)).Error
}

func advisoryKey(scope string, ownerID int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scope))
	return int64(h.Sum64()) ^ ownerID
}
