package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/model"
	"github.com/sakif/taskflow/internal/repository"
)

// Gate decides who, if anyone, is behind a session token.
//
// A token resolves to a user only when all of these hold:
//   - the signature, issuer and expiry check out
//   - the session row named by the token's jti still exists (logout deletes it)
//   - the row has not expired and belongs to the token's subject
//   - the user still exists
//
// Anything short of that is an anonymous request, not an error. Only store
// failures come back as errors, so a flaky database is never mistaken for
// "logged out".
type Gate struct {
	store  repository.Store
	tokens *TokenService
	now    func() time.Time
}

// NewGate creates a Gate reading sessions and users from store.
func NewGate(store repository.Store, tokens *TokenService) *Gate {
	return &Gate{store: store, tokens: tokens, now: time.Now}
}

// ResolveCurrentUser returns the user behind token, or (nil, nil) when the
// request is anonymous.
func (g *Gate) ResolveCurrentUser(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}

	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil, nil
	}

	session, err := g.store.Sessions().GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: loading session: %w", err)
	}
	if session.UserID != claims.UserID || session.Expired(g.now()) {
		return nil, nil
	}

	user, err := g.store.Users().GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: loading user: %w", err)
	}
	return user, nil
}

// RequireAuthenticated is ResolveCurrentUser for callers that cannot proceed
// anonymously: no user means apperror.ErrUnauthenticated.
func (g *Gate) RequireAuthenticated(ctx context.Context, token string) (*model.User, error) {
	user, err := g.ResolveCurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	return user, nil
}
