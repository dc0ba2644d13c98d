package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"jobtracker/pkg/domain"
)

const migrateLockID int64 = 51837204

const usersQuotaScope = "users"

type GormStoreOptions struct {
	MaxUsers               int
	MaxApplicationsPerUser int
}

type GormStoreOption func(*GormStoreOptions)

// WithMaxUsers caps the total number of registered users. Zero disables the cap.
func WithMaxUsers(n int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.MaxUsers = n
	}
}

// WithMaxApplicationsPerUser caps applications per user. Zero disables the cap.
func WithMaxApplicationsPerUser(n int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.MaxApplicationsPerUser = n
	}
}

// GormStore implements Store using GORM on Postgres or SQLite.
type GormStore struct {
	db       *gorm.DB
	maxUsers int

	applications *OwnedRepository[ApplicationModel, *ApplicationModel]
	deliverables *OwnedRepository[DeliverableModel, *DeliverableModel]
	writing      *OwnedRepository[WritingItemModel, *WritingItemModel]
}

// NewGormStore opens the DB and runs auto-migrations.
// dsn is a postgres:// URL, a key=value Postgres DSN, or sqlite://<path>
// (sqlite:///rel.db, sqlite:////abs.db, sqlite://:memory:).
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	if opts.MaxUsers < 0 || opts.MaxApplicationsPerUser < 0 {
		return nil, errors.New("quota options must be >= 0")
	}

	dialector, err := openDialector(dsn)
	if err != nil {
		return nil, err
	}
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if db.Dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &ApplicationModel{}, &DeliverableModel{}, &WritingItemModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return newGormStore(db, opts), nil
}

func newGormStore(db *gorm.DB, opts GormStoreOptions) *GormStore {
	return &GormStore{
		db:       db,
		maxUsers: opts.MaxUsers,
		applications: NewOwnedRepository[ApplicationModel](db, RepositoryConfig{
			Ownership:     DirectOwner{Column: "user_id"},
			Quota:         opts.MaxApplicationsPerUser,
			SearchColumns: []string{"company", "role", "notes"},
			Children:      []Child{{Table: "deliverables", ForeignKey: "application_id"}},
		}),
		deliverables: NewOwnedRepository[DeliverableModel](db, RepositoryConfig{
			Ownership: ParentOwner{ParentTable: "applications", ForeignKey: "application_id", OwnerColumn: "user_id"},
		}),
		writing: NewOwnedRepository[WritingItemModel](db, RepositoryConfig{
			Ownership:     DirectOwner{Column: "user_id"},
			SearchColumns: []string{"title", "tags", "content"},
		}),
	}
}

func openDialector(dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, errors.New("database URL required")
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return nil, fmt.Errorf("sqlite database path missing in %q", dsn)
		}
		return sqlite.Open(path), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database URL scheme: %q", dsn)
	}
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	if db.Dialector.Name() != "postgres" {
		return fn(db)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser registers a user. The user cap is checked before the email
// uniqueness so a full instance reports capacity first.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	model := userToModel(u)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, usersQuotaScope, 0); err != nil {
			return fmt.Errorf("lock users quota: %w", err)
		}
		if s.maxUsers > 0 {
			var count int64
			if err := tx.Model(&UserModel{}).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(s.maxUsers) {
				return ErrCapacity
			}
		}
		var existing int64
		if err := tx.Model(&UserModel{}).Where("email = ?", model.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicate
		}
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteUser removes a user together with everything they own.
func (s *GormStore) DeleteUser(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM deliverables WHERE application_id IN (SELECT id FROM applications WHERE user_id = ?)", id,
		).Error; err != nil {
			return fmt.Errorf("delete deliverables: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&ApplicationModel{}).Error; err != nil {
			return fmt.Errorf("delete applications: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&WritingItemModel{}).Error; err != nil {
			return fmt.Errorf("delete writing items: %w", err)
		}
		res := tx.Delete(&UserModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListApplications returns the owner's applications, most recently updated first.
func (s *GormStore) ListApplications(ctx context.Context, ownerID int64, filter ApplicationFilter) ([]domain.Application, error) {
	q := ListQuery{Search: filter.Query}
	if status := strings.TrimSpace(filter.Status); status != "" {
		q.Equal = append(q.Equal, Match{Column: "status", Value: status})
	}
	models, err := s.applications.List(ctx, ownerID, q)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Application, 0, len(models))
	for _, m := range models {
		res = append(res, applicationFromModel(m))
	}
	return res, nil
}

// GetApplication returns one owned application.
func (s *GormStore) GetApplication(ctx context.Context, ownerID, id int64) (domain.Application, error) {
	m, err := s.applications.Get(ctx, ownerID, id)
	if err != nil {
		return domain.Application{}, err
	}
	return applicationFromModel(m), nil
}

// CreateApplication inserts an application, enforcing the per-user cap.
func (s *GormStore) CreateApplication(ctx context.Context, ownerID int64, a domain.Application) (domain.Application, error) {
	a.UserID = ownerID
	model := applicationToModel(a)
	if err := s.applications.Create(ctx, ownerID, &model); err != nil {
		return domain.Application{}, err
	}
	return applicationFromModel(model), nil
}

// UpdateApplication applies mutate to an owned application.
func (s *GormStore) UpdateApplication(ctx context.Context, ownerID, id int64, mutate func(*domain.Application) error) (domain.Application, error) {
	m, err := s.applications.Update(ctx, ownerID, id, func(m *ApplicationModel) error {
		a := applicationFromModel(*m)
		if err := mutate(&a); err != nil {
			return err
		}
		a.ID, a.UserID = m.ID, m.UserID
		*m = applicationToModel(a)
		return nil
	})
	if err != nil {
		return domain.Application{}, err
	}
	return applicationFromModel(m), nil
}

// DeleteApplication removes an owned application and its deliverables.
func (s *GormStore) DeleteApplication(ctx context.Context, ownerID, id int64) error {
	_, err := s.applications.Delete(ctx, ownerID, id)
	return err
}

// TouchApplication refreshes updated_at of an owned application.
func (s *GormStore) TouchApplication(ctx context.Context, ownerID, id int64) error {
	return s.applications.Touch(ctx, ownerID, id)
}

// ListDeliverables returns deliverables of one owned application.
func (s *GormStore) ListDeliverables(ctx context.Context, ownerID, applicationID int64) ([]domain.Deliverable, error) {
	models, err := s.deliverables.List(ctx, ownerID, ListQuery{
		Equal: []Match{{Column: "application_id", Value: applicationID}},
	})
	if err != nil {
		return nil, err
	}
	res := make([]domain.Deliverable, 0, len(models))
	for _, m := range models {
		res = append(res, deliverableFromModel(m))
	}
	return res, nil
}

// CreateDeliverable inserts a deliverable under an owned application.
func (s *GormStore) CreateDeliverable(ctx context.Context, ownerID int64, d domain.Deliverable) (domain.Deliverable, error) {
	model := deliverableToModel(d)
	if err := s.deliverables.Create(ctx, ownerID, &model); err != nil {
		return domain.Deliverable{}, err
	}
	return deliverableFromModel(model), nil
}

// UpdateDeliverable applies mutate to a deliverable reachable through an owned application.
func (s *GormStore) UpdateDeliverable(ctx context.Context, ownerID, id int64, mutate func(*domain.Deliverable) error) (domain.Deliverable, error) {
	m, err := s.deliverables.Update(ctx, ownerID, id, func(m *DeliverableModel) error {
		d := deliverableFromModel(*m)
		if err := mutate(&d); err != nil {
			return err
		}
		d.ID, d.ApplicationID = m.ID, m.ApplicationID
		*m = deliverableToModel(d)
		return nil
	})
	if err != nil {
		return domain.Deliverable{}, err
	}
	return deliverableFromModel(m), nil
}

// DeleteDeliverable removes a deliverable and returns it so callers can
// touch its application.
func (s *GormStore) DeleteDeliverable(ctx context.Context, ownerID, id int64) (domain.Deliverable, error) {
	m, err := s.deliverables.Delete(ctx, ownerID, id)
	if err != nil {
		return domain.Deliverable{}, err
	}
	return deliverableFromModel(m), nil
}

// ListWritingItems returns the owner's writing bank, optionally searched.
func (s *GormStore) ListWritingItems(ctx context.Context, ownerID int64, query string) ([]domain.WritingBankItem, error) {
	models, err := s.writing.List(ctx, ownerID, ListQuery{Search: query})
	if err != nil {
		return nil, err
	}
	res := make([]domain.WritingBankItem, 0, len(models))
	for _, m := range models {
		res = append(res, writingItemFromModel(m))
	}
	return res, nil
}

// CreateWritingItem inserts a writing bank item.
func (s *GormStore) CreateWritingItem(ctx context.Context, ownerID int64, item domain.WritingBankItem) (domain.WritingBankItem, error) {
	item.UserID = ownerID
	model := writingItemToModel(item)
	if err := s.writing.Create(ctx, ownerID, &model); err != nil {
		return domain.WritingBankItem{}, err
	}
	return writingItemFromModel(model), nil
}

// UpdateWritingItem applies mutate to an owned writing bank item.
func (s *GormStore) UpdateWritingItem(ctx context.Context, ownerID, id int64, mutate func(*domain.WritingBankItem) error) (domain.WritingBankItem, error) {
	m, err := s.writing.Update(ctx, ownerID, id, func(m *WritingItemModel) error {
		item := writingItemFromModel(*m)
		if err := mutate(&item); err != nil {
			return err
		}
		item.ID, item.UserID = m.ID, m.UserID
		*m = writingItemToModel(item)
		return nil
	})
	if err != nil {
		return domain.WritingBankItem{}, err
	}
	return writingItemFromModel(m), nil
}

// DeleteWritingItem removes an owned writing bank item.
func (s *GormStore) DeleteWritingItem(ctx context.Context, ownerID, id int64) error {
	_, err := s.writing.Delete(ctx, ownerID, id)
	return err
}
