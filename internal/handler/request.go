package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/taskflow/internal/apperror"
)

// maxBodyBytes caps request bodies. Tasks and credentials are tiny.
const maxBodyBytes = 64 << 10

// formBinder is implemented by every request struct that can also arrive as
// an HTML form post.
type formBinder interface {
	bindForm(values url.Values)
}

// bind fills dst from a JSON body or from form values, depending on the
// request's Content-Type.
//
// JSON DECODING:
// json.NewDecoder streams the body instead of buffering it; MaxBytesReader
// stops a client from making us read an unbounded body.
func bind(w http.ResponseWriter, r *http.Request, dst formBinder) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return apperror.ValidationFailed("body", "request body must be valid JSON")
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return apperror.ValidationFailed("body", "could not parse form")
	}
	dst.bindForm(r.PostForm)
	return nil
}

// checkbox reads an HTML checkbox: browsers send "on" when ticked and omit
// the field otherwise.
func checkbox(values url.Values, name string) bool {
	switch strings.ToLower(values.Get(name)) {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}

// dueDateLayouts are tried in order. The second is what an HTML
// <input type="datetime-local"> submits.
var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDueDate accepts any of dueDateLayouts. Layouts without a zone are read
// as UTC. An empty string yields the zero time, which validation reports as
// "due date is required".
func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.ValidationFailed("due_date", "enter a valid date, e.g. 2024-01-31 or 2024-01-31T09:00")
}
