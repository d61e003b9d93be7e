package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/auth"
	"github.com/sakif/taskflow/internal/middleware"
	"github.com/sakif/taskflow/internal/model"
	"github.com/sakif/taskflow/internal/service"
)

// AuthHandler serves signup, login, logout and the current-user endpoint.
type AuthHandler struct {
	accounts     *service.AuthService
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieSecure should be true whenever
// the app is served over HTTPS.
func NewAuthHandler(accounts *service.AuthService, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *signupRequest) bindForm(v url.Values) {
	s.Username = v.Get("username")
	s.Email = v.Get("email")
	s.Password = v.Get("password")
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
	Next       string `json:"next"`
}

func (l *loginRequest) bindForm(v url.Values) {
	l.Email = v.Get("email")
	l.Password = v.Get("password")
	l.RememberMe = checkbox(v, "remember_me")
	l.Next = v.Get("next")
}

// SignupResponse is the JSON body of a successful signup.
type SignupResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// HandleSignupPage stands in for the signup form: it reports any pending
// flash message. Logged-in users are sent home instead.
//
// HTTP: GET /signup
func (h *AuthHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"form":   "signup",
		"fields": []string{"username", "email", "password"},
		"flash":  popFlash(w, r),
	})
}

// HandleSignup creates an account and logs it straight in.
//
// HTTP: POST /signup
//
// RESPONSES:
//   - JSON 201 {"status":"success","message":"...","user":{...}}
//   - JSON 400 {"errors":{"email":"enter a valid email address"}}
//   - JSON 409 {"error":"conflict","message":"user with this email already exists"}
//   - browser: flash + 303 to "/" on success, back to /signup on failure
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); ok && !middleware.WantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	var req signupRequest
	if err := bind(w, r, &req); err != nil {
		h.signupFailed(w, r, err)
		return
	}

	session, err := h.signupAndLogin(r, req)
	if err != nil {
		h.signupFailed(w, r, err)
		return
	}
	h.setSessionCookie(w, session, false)

	const msg = "Account created successfully. Welcome!"
	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusCreated, SignupResponse{Status: "success", Message: msg, User: session.User})
		return
	}
	redirectWithFlash(w, r, "/", msg)
}

func (h *AuthHandler) signupFailed(w http.ResponseWriter, r *http.Request, err error) {
	logIfInternal(h.logger, r, "signup failed", err)
	if !middleware.WantsJSON(r) {
		redirectWithFlash(w, r, "/signup", userMessage(err))
		return
	}
	if errors.Is(err, apperror.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, map[string]map[string]string{"errors": fieldErrors(err)})
		return
	}
	writeError(w, err)
}

func (h *AuthHandler) signupAndLogin(r *http.Request, req signupRequest) (*service.Session, error) {
	user, err := h.accounts.Signup(r.Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}
	return h.accounts.StartSession(r.Context(), user, false)
}

// HandleLoginPage stands in for the login form: it echoes the `next` target
// and any pending flash message. Logged-in users are sent home.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, auth.SafeNext(r.URL.Query().Get("next")), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"form":   "login",
		"fields": []string{"email", "password", "remember_me"},
		"next":   auth.SafeNext(r.URL.Query().Get("next")),
		"flash":  popFlash(w, r),
	})
}

// HandleLogin verifies credentials and sets the session cookie.
//
// HTTP: POST /login
//
// The redirect target comes from the `next` field (or query parameter) and
// is only honoured for local paths, so the login page can't be turned into
// an open redirect.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); ok && !middleware.WantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	var req loginRequest
	if err := bind(w, r, &req); err != nil {
		h.loginFailed(w, r, err, "")
		return
	}
	next := req.Next
	if next == "" {
		next = r.URL.Query().Get("next")
	}

	session, err := h.accounts.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		h.loginFailed(w, r, err, next)
		return
	}

	h.setSessionCookie(w, session, req.RememberMe)

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"user":       session.User,
			"token":      session.Token,
			"expires_at": session.ExpiresAt,
		})
		return
	}
	redirectWithFlash(w, r, auth.SafeNext(next), "Welcome back, "+session.User.Username+"!")
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, err error, next string) {
	logIfInternal(h.logger, r, "login failed", err)
	if middleware.WantsJSON(r) {
		writeError(w, err)
		return
	}
	to := "/login"
	if next != "" {
		to = auth.LoginURL(auth.SafeNext(next))
	}
	redirectWithFlash(w, r, to, userMessage(err))
}

// HandleLogout revokes the session and clears the cookie.
//
// HTTP: GET or POST /logout
//
// Revocation deletes the session row, so the token stops working everywhere
// at once even if a copy of the cookie survives somewhere.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		logIfInternal(h.logger, r, "logout failed", err)
		writeError(w, err)
		return
	}

	h.clearSessionCookie(w)

	if middleware.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	redirectWithFlash(w, r, "/login", "You have been logged out.")
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /me
// Auth: Required (RequireAuth middleware puts the user in the context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Only reachable if the route loses its RequireAuth middleware.
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// setSessionCookie stores the session token.
//
// COOKIE ATTRIBUTES:
//   - HttpOnly: JavaScript can't read it (XSS can't steal the session)
//   - SameSite=Lax: not sent on cross-site POSTs (CSRF protection)
//   - Secure: only over HTTPS, when configured
//
// Without "remember me" the cookie has no expiry and disappears when the
// browser closes; the server-side session still lapses after the default TTL.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *service.Session, remember bool) {
	c := &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		c.Expires = session.ExpiresAt
	}
	http.SetCookie(w, c)
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
