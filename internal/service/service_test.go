package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/sakif/taskflow/internal/auth"
	"github.com/sakif/taskflow/internal/model"
	"github.com/sakif/taskflow/internal/repository/sqlite"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// SHARED TEST HELPERS
// =========================================================================
//
// These tests run the services against a real in-memory SQLite database
// instead of a hand-written mock: WithTx, UNIQUE constraints and rollbacks are
// exactly the behaviour under test, and ":memory:" keeps each test isolated
// and fast.

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(t *testing.T, store *sqlite.DB) *AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)
	return NewAuthService(store, tokens, auth.NewPasswordServiceForTest(), SessionTTLs{}, newTestLogger())
}

// signup registers a user with password "pw12345".
func signup(t *testing.T, svc *AuthService, username string) *model.User {
	t.Helper()
	user, err := svc.Signup(context.Background(), SignupInput{
		Username: username,
		Email:    username + "@x.com",
		Password: "pw12345",
	})
	require.NoError(t, err)
	return user
}

// usersFor creates one user per name and returns them in order.
func usersFor(t *testing.T, store *sqlite.DB, names ...string) []*model.User {
	t.Helper()
	svc := newTestAuthService(t, store)
	users := make([]*model.User, 0, len(names))
	for _, name := range names {
		users = append(users, signup(t, svc, name))
	}
	return users
}
