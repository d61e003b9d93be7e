// Package repository declares the persistence contracts the services depend on.
// The sqlite sub-package implements them.
package repository

import (
	"context"

	"github.com/sakif/taskflow/internal/model"
)

// UserRepository persists accounts.
type UserRepository interface {
	// Save inserts the user when ID is empty and updates it otherwise.
	// A username/email collision returns apperror.ErrDuplicate.
	Save(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Count(ctx context.Context) (int, error)
}

// TaskRepository persists tasks.
type TaskRepository interface {
	// Save assigns a slug if the task has none, then inserts (empty ID) or
	// updates. A slug collision returns apperror.ErrDuplicate.
	Save(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id string) (*model.Task, error)
	GetBySlug(ctx context.Context, slug string) (*model.Task, error)
	ListByOwner(ctx context.Context, userID string) ([]model.Task, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SessionRepository persists login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	// Delete is idempotent: removing a session that does not exist is not an error.
	Delete(ctx context.Context, id string) error
}

// Store groups the repositories that share one database handle.
//
// WithTx runs fn against a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise, so a
// failed write never leaves partial state behind. Calling WithTx on a Store
// that is already transaction-bound reuses the outer transaction.
type Store interface {
	Users() UserRepository
	Tasks() TaskRepository
	Sessions() SessionRepository
	WithTx(ctx context.Context, fn func(Store) error) error
}
