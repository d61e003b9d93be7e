package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sakif/taskflow/internal/config"
	"github.com/sakif/taskflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// TEST HARNESS
// =========================================================================
//
// These tests drive the real router over HTTP: real handlers, services,
// auth gate and an in-memory SQLite database. Each test gets a fresh server.

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		DBPath:        ":memory:",
		SessionSecret: "test-secret-at-least-16-chars!!",
		SessionTTL:    time.Hour,
		RememberTTL:   48 * time.Hour,
		BcryptCost:    4,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// apiClient talks JSON and keeps cookies, like a script would.
type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newAPIClient(t *testing.T, ts *httptest.Server) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, base: ts.URL, http: &http.Client{
		Jar: jar,
		// Surface redirects instead of following them.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}}
}

func (c *apiClient) do(method, path, body string) (*http.Response, map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Accept", "application/json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp, out
}

// signupAs registers and logs in (signup sets the session cookie).
func (c *apiClient) signupAs(username string) {
	c.t.Helper()
	resp, _ := c.do(http.MethodPost, "/signup",
		`{"username":"`+username+`","email":"`+username+`@x.com","password":"pw12345"}`)
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
}

func (c *apiClient) createTask(title string) model.Task {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+"/admin/task",
		strings.NewReader(`{"title":"`+title+`","due_date":"2024-01-01T09:00"}`))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)

	var task model.Task
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&task))
	return task
}

// =========================================================================
// HEALTH / AUTH FLOWS
// =========================================================================

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, body := newAPIClient(t, ts).do(http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestSignup_JSON(t *testing.T) {
	ts := newTestServer(t)
	c := newAPIClient(t, ts)

	resp, body := c.do(http.MethodPost, "/signup", `{"username":"alice","email":"a@x.com","password":"pw12345"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "success", body["status"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "PasswordHash")
	assert.NotContains(t, user, "password_hash")

	// Signup logged us in.
	resp, me := c.do(http.MethodGet, "/me", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", me["username"])

	// Same email again: 409 and still one account.
	other := newAPIClient(t, ts)
	resp, body = other.do(http.MethodPost, "/signup", `{"username":"alice2","email":"a@x.com","password":"pw12345"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["error"])
}

func TestSignup_JSONValidation(t *testing.T) {
	ts := newTestServer(t)
	resp, body := newAPIClient(t, ts).do(http.MethodPost, "/signup", `{"username":"al","email":"nope","password":""}`)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
}

func TestLoginLogout_JSON(t *testing.T) {
	ts := newTestServer(t)
	newAPIClient(t, ts).signupAs("alice")

	c := newAPIClient(t, ts)

	resp, body := c.do(http.MethodPost, "/login", `{"email":"alice@x.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid email or password", body["message"])

	resp, body = c.do(http.MethodPost, "/login", `{"email":"alice@x.com","password":"pw12345"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, _ = c.do(http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_RevokesCopiedToken(t *testing.T) {
	ts := newTestServer(t)
	newAPIClient(t, ts).signupAs("alice")

	c := newAPIClient(t, ts)
	_, body := c.do(http.MethodPost, "/login", `{"email":"alice@x.com","password":"pw12345"}`)
	token := body["token"].(string)

	bearer := func() int {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, bearer())
	c.do(http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusUnauthorized, bearer(), "a copied token must die with the session")
}

// =========================================================================
// BROWSER FLOWS
// =========================================================================

func postForm(t *testing.T, client *http.Client, target string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(target, form)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestBrowserFlow(t *testing.T) {
	ts := newTestServer(t)
	c := newAPIClient(t, ts) // cookie jar + no redirect following

	// Protected page while logged out → login with next.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	resp, err := c.http.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = postForm(t, c.http, ts.URL+"/signup", url.Values{
		"username": {"alice"}, "email": {"alice@x.com"}, "password": {"pw12345"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	// Already logged in: the login page sends us home.
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/login", nil)
	resp, err = c.http.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = postForm(t, c.http, ts.URL+"/admin/task", url.Values{
		"title": {"Buy milk"}, "description": {"2 litres"}, "due_date": {"2024-01-01T09:00"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// The home page shows the task and the one-shot flash.
	_, home := c.do(http.MethodGet, "/", "")
	assert.Equal(t, "Task created successfully.", home["flash"])
	tasks := home["tasks"].([]any)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].(map[string]any)["title"])

	_, again := c.do(http.MethodGet, "/", "")
	assert.Nil(t, again["flash"], "flash must only be shown once")

	// Invalid form: flash + redirect back, nothing created.
	resp = postForm(t, c.http, ts.URL+"/admin/task", url.Values{"title": {""}, "due_date": {"2024-01-01"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, home = c.do(http.MethodGet, "/", "")
	assert.Len(t, home["tasks"].([]any), 1)
	assert.Contains(t, home["flash"], "title is required")

	resp = postForm(t, c.http, ts.URL+"/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestBrowserLogin_SafeNext(t *testing.T) {
	ts := newTestServer(t)
	newAPIClient(t, ts).signupAs("alice")

	tests := []struct {
		next string
		want string
	}{
		{"/me", "/me"},
		{"https://evil.example/", "/"},
		{"//evil.example", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			c := newAPIClient(t, ts)
			resp := postForm(t, c.http, ts.URL+"/login", url.Values{
				"email": {"alice@x.com"}, "password": {"pw12345"}, "next": {tt.next},
			})
			assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
			assert.Equal(t, tt.want, resp.Header.Get("Location"))
		})
	}
}

func TestBrowserLogin_RememberMeCookie(t *testing.T) {
	ts := newTestServer(t)
	newAPIClient(t, ts).signupAs("alice")

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	plain := postForm(t, client, ts.URL+"/login", url.Values{"email": {"alice@x.com"}, "password": {"pw12345"}})
	remembered := postForm(t, client, ts.URL+"/login", url.Values{"email": {"alice@x.com"}, "password": {"pw12345"}, "remember_me": {"on"}})

	session := func(resp *http.Response) *http.Cookie {
		for _, c := range resp.Cookies() {
			if c.Name == "session" {
				return c
			}
		}
		t.Fatal("no session cookie set")
		return nil
	}

	assert.True(t, session(plain).Expires.IsZero(), "plain login: browser-session cookie")
	assert.True(t, session(plain).HttpOnly)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), session(remembered).Expires, time.Minute)
}

// =========================================================================
// TASK FLOWS
// =========================================================================

func TestTaskLifecycle_JSON(t *testing.T) {
	ts := newTestServer(t)
	alice := newAPIClient(t, ts)
	alice.signupAs("alice")
	bob := newAPIClient(t, ts)
	bob.signupAs("bob")
	anon := newAPIClient(t, ts)

	task := alice.createTask("Buy milk")
	assert.Regexp(t, `^buy-milk-[0-9a-z]{8}$`, task.Slug)

	// Public detail page.
	resp, body := anon.do(http.MethodGet, "/task/"+task.Slug, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["is_owner"])
	_, body = alice.do(http.MethodGet, "/task/"+task.Slug, "")
	assert.Equal(t, true, body["is_owner"])

	resp, _ = anon.do(http.MethodGet, "/task/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Bob can't touch it.
	resp, _ = bob.do(http.MethodPut, "/admin/task/"+task.Slug+"/edit", `{"title":"Hijack","due_date":"2024-01-02"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = bob.do(http.MethodPost, "/toggle/"+task.ID, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = bob.do(http.MethodDelete, "/admin/task/"+task.Slug+"/delete", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Bob's home page doesn't list it.
	_, home := bob.do(http.MethodGet, "/", "")
	assert.Empty(t, home["tasks"])

	// Alice edits: slug survives.
	resp, body = alice.do(http.MethodPut, "/admin/task/"+task.Slug+"/edit", `{"title":"Buy oat milk","due_date":"2024-01-02"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Buy oat milk", body["title"])
	assert.Equal(t, task.Slug, body["slug"])

	// Invalid edit.
	resp, body = alice.do(http.MethodPut, "/admin/task/"+task.Slug+"/edit", `{"title":"","due_date":"2024-01-02"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["fields"], "title")

	// Toggle twice.
	_, body = alice.do(http.MethodPost, "/toggle/"+task.ID, "")
	assert.Equal(t, true, body["isDone"])
	_, body = alice.do(http.MethodPost, "/toggle/"+task.ID, "")
	assert.Equal(t, false, body["isDone"])

	// Delete.
	resp, _ = alice.do(http.MethodDelete, "/admin/task/"+task.Slug+"/delete", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = anon.do(http.MethodGet, "/task/"+task.Slug, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	ts := newTestServer(t)
	anon := newAPIClient(t, ts)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/"},
		{http.MethodGet, "/me"},
		{http.MethodPost, "/admin/task"},
		{http.MethodPost, "/admin/task/x/edit"},
		{http.MethodPost, "/admin/task/x/delete"},
		{http.MethodPost, "/toggle/x"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			resp, body := anon.do(rt.method, rt.path, "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "unauthorized", body["error"])
		})
	}
}

// Links with a trailing slash ("/task/<slug>/") resolve to the same routes.
func TestTrailingSlashRoutes(t *testing.T) {
	ts := newTestServer(t)
	alice := newAPIClient(t, ts)
	alice.signupAs("alice")
	task := alice.createTask("Buy milk")

	resp, body := newAPIClient(t, ts).do(http.MethodGet, "/task/"+task.Slug+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail, ok := body["task"].(map[string]any)
	require.True(t, ok, "body: %v", body)
	assert.Equal(t, task.Slug, detail["slug"])

	resp, body = alice.do(http.MethodPut, "/admin/task/"+task.Slug+"/edit/", `{"title":"Buy oat milk","due_date":"2024-01-02"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Buy oat milk", body["title"])

	// The root path itself is untouched.
	resp, _ = alice.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
