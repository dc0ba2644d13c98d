package store

import (
	"context"
	"errors"

	"jobtracker/pkg/domain"
)

var (
	// ErrNotFound covers both absent rows and rows owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrCapacity is returned when a quota would be exceeded.
	ErrCapacity = errors.New("capacity reached")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidSession covers malformed, expired, foreign and revoked tokens.
	ErrInvalidSession = errors.New("invalid session")
)

// ApplicationFilter narrows an application listing.
type ApplicationFilter struct {
	Status string
	Query  string
}

// Store defines persistence operations for users and their job search records.
// Every record operation is scoped by the owning user id.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id int64) (domain.User, bool, error)
	UserCount(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id int64) error

	// applications
	ListApplications(ctx context.Context, ownerID int64, filter ApplicationFilter) ([]domain.Application, error)
	GetApplication(ctx context.Context, ownerID, id int64) (domain.Application, error)
	CreateApplication(ctx context.Context, ownerID int64, a domain.Application) (domain.Application, error)
	UpdateApplication(ctx context.Context, ownerID, id int64, mutate func(*domain.Application) error) (domain.Application, error)
	DeleteApplication(ctx context.Context, ownerID, id int64) error
	TouchApplication(ctx context.Context, ownerID, id int64) error

	// deliverables
	ListDeliverables(ctx context.Context, ownerID, applicationID int64) ([]domain.Deliverable, error)
	CreateDeliverable(ctx context.Context, ownerID int64, d domain.Deliverable) (domain.Deliverable, error)
	UpdateDeliverable(ctx context.Context, ownerID, id int64, mutate func(*domain.Deliverable) error) (domain.Deliverable, error)
	DeleteDeliverable(ctx context.Context, ownerID, id int64) (domain.Deliverable, error)

	// writing bank
	ListWritingItems(ctx context.Context, ownerID int64, query string) ([]domain.WritingBankItem, error)
	CreateWritingItem(ctx context.Context, ownerID int64, item domain.WritingBankItem) (domain.WritingBankItem, error)
	UpdateWritingItem(ctx context.Context, ownerID, id int64, mutate func(*domain.WritingBankItem) error) (domain.WritingBankItem, error)
	DeleteWritingItem(ctx context.Context, ownerID, id int64) error

	Close() error
}

// SessionStore issues and resolves bearer tokens. GetUserIDByToken wraps
// ErrInvalidSession when the token itself is unacceptable; any other error
// means the session could not be checked.
type SessionStore interface {
	NewSession(userID int64, email string) (string, error)
	GetUserIDByToken(token string) (int64, bool, error)
	DeleteSession(token string) error
}
