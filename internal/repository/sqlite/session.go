package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/model"
	"github.com/sakif/taskflow/internal/repository"
)

// SessionDB implements repository.SessionRepository.
type SessionDB struct {
	q querier
}

var _ repository.SessionRepository = (*SessionDB)(nil)

// Create stores a session. The caller assigns ID and ExpiresAt; a missing
// CreatedAt defaults to now.
func (s *SessionDB) Create(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return classify("creating session", err)
	}
	return nil
}

// GetByID returns the session or apperror.ErrNotFound. Expiry is not checked
// here; that is the caller's policy.
func (s *SessionDB) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := s.q.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", "id "+id)
		}
		return nil, apperror.Store("getting session", err)
	}
	return &session, nil
}

// Delete removes a session. Deleting an unknown id is not an error, which
// makes logout idempotent.
func (s *SessionDB) Delete(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return apperror.Store("deleting session", err)
	}
	return nil
}
