package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/middleware"
	"github.com/sakif/taskflow/internal/model"
)

// SessionCookieName is the HttpOnly cookie that carries the session token.
const SessionCookieName = "session"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A plain string key could be read
// or shadowed by any package that knows the string. Only this package can
// create a key of type contextKey.
type contextKey string

const userKey contextKey = "user"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// The user found by the Gate is stored in the request context. Without one:
//   - API callers (see middleware.WantsJSON) get 401 with a JSON body
//   - browsers are redirected to /login?next=<original path>
//
// A store failure while resolving is a 500, never a silent logout.
func RequireAuth(gate *Gate, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := gate.ResolveCurrentUser(r.Context(), TokenFromRequest(r))
			if err != nil {
				logger.Error("resolving current user", apperror.Attr(err))
				writeAuthJSON(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
				return
			}
			if user == nil {
				if middleware.WantsJSON(r) {
					writeAuthJSON(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
					return
				}
				http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches the user when a live session is present but never
// blocks the request. Public pages use it to tell owners from visitors, and
// /signup and /login use it to bounce users who are already logged in.
func OptionalAuth(gate *Gate, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := gate.ResolveCurrentUser(r.Context(), TokenFromRequest(r))
			if err != nil {
				logger.Warn("resolving current user; continuing anonymously", apperror.Attr(err))
			}
			if user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or (nil, false) for an
// anonymous request.
//
// Usage in handlers:
//
//	user, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    // anonymous user
//	}
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// TokenFromRequest returns the session token from an
// "Authorization: Bearer <token>" header or, failing that, from the session
// cookie. The header wins: it is sent on purpose, while the cookie may be a
// leftover from an earlier (since revoked) browser session.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// LoginURL builds the redirect target for an unauthenticated browser.
func LoginURL(next string) string {
	if next == "" || next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// SafeNext returns next when it is a local absolute path, and "/" otherwise.
// "//evil.example" and "/\evil.example" are protocol-relative in browsers and
// therefore rejected.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return "/"
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

func writeAuthJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// code and message are constants from this file; no escaping needed.
	w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`))
}
