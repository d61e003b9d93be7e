package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/model"
	"github.com/sakif/taskflow/internal/repository"
)

// UserDB implements repository.UserRepository on top of a querier
// (the pool or a transaction).
type UserDB struct {
	q querier
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

// Save inserts a new user (empty ID) or updates an existing one.
//
// ID GENERATION WITH xid:
// xid generates globally unique IDs that are 20 chars, URL-safe and sortable
// by creation time. Example: "cv37rs3pp9olc6atsptg".
//
// UNIQUENESS:
// username and email carry UNIQUE constraints. A single INSERT/UPDATE is
// atomic in SQLite, so a violation leaves no partial row; classify turns it
// into apperror.ErrDuplicate naming the column.
func (u *UserDB) Save(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	if user.ID == "" {
		id := xid.New().String()
		_, err := u.q.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id,
			user.Username,
			user.Email,
			user.PasswordHash,
			now,
			now,
		)
		if err != nil {
			return classify("creating user", err)
		}
		// Only mutate the caller's struct once the row exists.
		user.ID = id
		user.CreatedAt = now
		user.UpdatedAt = now
		return nil
	}

	result, err := u.q.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, password_hash = ?, updated_at = ?
		 WHERE id = ?`,
		user.Username,
		user.Email,
		user.PasswordHash,
		now,
		user.ID,
	)
	if err != nil {
		return classify(fmt.Sprintf("updating user %s", user.ID), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperror.Store("checking rows affected", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", "id "+user.ID)
	}

	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getOne(ctx, "id", id)
}

// GetByEmail retrieves a user by email address.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getOne(ctx, "email", email)
}

// GetByUsername retrieves a user by username.
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getOne(ctx, "username", username)
}

// getOne looks a user up by one unique column. column is always one of our
// own constants, never user input, so building the query with + is safe.
func (u *UserDB) getOne(ctx context.Context, column, value string) (*model.User, error) {
	var user model.User

	err := u.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", column+" "+value)
		}
		return nil, apperror.Store(fmt.Sprintf("getting user by %s", column), err)
	}

	return &user, nil
}

// Count returns the number of registered users.
func (u *UserDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := u.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, apperror.Store("counting users", err)
	}
	return n, nil
}
