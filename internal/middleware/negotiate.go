package middleware

import (
	"net/http"
	"strings"
)

// WantsJSON reports whether the caller is an API client rather than a browser.
// API clients either ask for JSON, send JSON, or authenticate with a bearer
// token; browsers do none of these.
func WantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}
