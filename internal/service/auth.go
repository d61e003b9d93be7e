// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept plain Go values (never *http.Request) and return apperror
// values (never HTTP status codes), so the same rules apply whether they are
// called from a handler, a CLI or a test.
//
// TRANSACTIONS:
// Every write goes through repository.Store.WithTx. Checks and writes that
// belong together (e.g. "is this email taken?" then INSERT) run against the
// same transaction, and any error rolls the whole thing back.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/auth"
	"github.com/sakif/taskflow/internal/model"
	"github.com/sakif/taskflow/internal/repository"
	"github.com/sakif/taskflow/internal/validate"
)

// Session lifetimes used when the config leaves them unset.
const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultRememberTTL = 30 * 24 * time.Hour
)

// errBadCredentials is deliberately the same for "no such email" and "wrong
// password" so the login form can't be used to discover accounts.
const errBadCredentials = "invalid email or password"

// AuthService handles signup, login and logout.
//
// DEPENDENCIES (injected via NewAuthService):
//   - store      repository.Store         → users and sessions
//   - tokens     *auth.TokenService       → sign session tokens
//   - passwords  *auth.PasswordService    → bcrypt hashing
//   - logger     *slog.Logger             → structured logging
type AuthService struct {
	store       repository.Store
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	logger      *slog.Logger
	sessionTTL  time.Duration
	rememberTTL time.Duration
	now         func() time.Time

	// dummyHash is verified against when the email is unknown, so a miss
	// costs the same bcrypt work as a wrong password.
	dummyOnce sync.Once
	dummyHash string
}

// SessionTTLs configures how long a login lasts.
type SessionTTLs struct {
	Default  time.Duration // plain login
	Remember time.Duration // "remember me" ticked
}

// NewAuthService creates an AuthService. Zero TTLs fall back to the defaults.
func NewAuthService(
	store repository.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	ttls SessionTTLs,
	logger *slog.Logger,
) *AuthService {
	if ttls.Default <= 0 {
		ttls.Default = DefaultSessionTTL
	}
	if ttls.Remember <= 0 {
		ttls.Remember = DefaultRememberTTL
	}
	return &AuthService{
		store:       store,
		tokens:      tokens,
		passwords:   passwords,
		logger:      logger,
		sessionTTL:  ttls.Default,
		rememberTTL: ttls.Remember,
		now:         time.Now,
	}
}

// SignupInput is what the signup form or JSON body provides.
type SignupInput struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// Session is a logged-in user plus the token that proves it.
// The handler puts Token in the session cookie.
type Session struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Signup registers a new account.
//
// ORDER OF CHECKS:
//  1. field validation (all offending fields reported at once)
//  2. password length in bytes (bcrypt's 72-byte limit)
//  3. inside one transaction: email taken? username taken? then INSERT
//
// The pre-checks give a friendly error for the common case; the UNIQUE
// constraints still catch a concurrent signup that slips between check and
// insert, and that surfaces as the same apperror.ErrDuplicate.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}

	user := &model.User{Username: in.Username, Email: in.Email}

	// Hash outside the transaction: bcrypt is slow and SQLite has one writer.
	if err := user.SetPassword(s.passwords, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password is too long")
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := ensureFree(tx.Users().GetByEmail(ctx, user.Email)); err != nil {
			return withDuplicate(err, "email")
		}
		if err := ensureFree(tx.Users().GetByUsername(ctx, user.Username)); err != nil {
			return withDuplicate(err, "username")
		}
		return tx.Users().Save(ctx, user)
	})
	if err != nil {
		if !errors.Is(err, apperror.ErrDuplicate) {
			s.logger.Error("failed to create user",
				slog.String("username", user.Username),
				apperror.Attr(err),
			)
		}
		return nil, err
	}

	s.logger.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// errTaken marks a lookup that found an existing row.
var errTaken = errors.New("taken")

// ensureFree turns a uniqueness lookup into: nil (free), errTaken, or the
// lookup's own failure.
func ensureFree(_ *model.User, err error) error {
	switch {
	case err == nil:
		return errTaken
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	default:
		return err
	}
}

func withDuplicate(err error, field string) error {
	if errors.Is(err, errTaken) {
		return apperror.Duplicate("user", field)
	}
	return err
}

// Login checks the credentials and opens a session.
//
// remember selects the long TTL ("remember me"); otherwise the session lasts
// the default TTL. Unknown email and wrong password both return the same
// apperror.ErrUnauthenticated.
func (s *AuthService) Login(ctx context.Context, email, password string, remember bool) (*Session, error) {
	user, err := s.store.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.burnVerify(password)
		s.logger.Info("login failed", slog.String("reason", "unknown email"))
		return nil, apperror.Unauthenticated(errBadCredentials)
	}

	if !user.CheckPassword(s.passwords, password) {
		s.logger.Info("login failed",
			slog.String("user_id", user.ID),
			slog.String("reason", "wrong password"),
		)
		return nil, apperror.Unauthenticated(errBadCredentials)
	}

	return s.StartSession(ctx, user, remember)
}

// StartSession opens a session for an already-authenticated user. Signup uses
// it to log the new account straight in.
func (s *AuthService) StartSession(ctx context.Context, user *model.User, remember bool) (*Session, error) {
	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}

	now := s.now().UTC()
	row := &model.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	token, err := s.tokens.Issue(user.ID, row.ID, row.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.Sessions().Create(ctx, row)
	})
	if err != nil {
		s.logger.Error("failed to create session",
			slog.String("user_id", user.ID),
			apperror.Attr(err),
		)
		return nil, err
	}

	s.logger.Info("session started",
		slog.String("user_id", user.ID),
		slog.Bool("remember", remember),
		slog.Time("expires_at", row.ExpiresAt),
	)
	return &Session{User: user, Token: token, ExpiresAt: row.ExpiresAt}, nil
}

// Logout revokes the session named by token. A missing, malformed or already
// revoked token is not an error: the caller ends up logged out either way.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		// Expired or forged: there is no live session to revoke.
		return nil
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.Sessions().Delete(ctx, claims.SessionID)
	})
	if err != nil {
		s.logger.Error("failed to delete session",
			slog.String("session_id", claims.SessionID),
			apperror.Attr(err),
		)
		return err
	}

	s.logger.Info("session ended", slog.String("user_id", claims.UserID))
	return nil
}

// burnVerify spends one bcrypt comparison so an unknown email takes as long
// as a wrong password.
func (s *AuthService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.passwords.Hash("taskflow-dummy-password")
	})
	if s.dummyHash != "" {
		_ = s.passwords.Verify(s.dummyHash, password)
	}
}

// normalizeEmail trims and lower-cases so "Alice@Example.com " and
// "alice@example.com" are the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
