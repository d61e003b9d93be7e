package model

import (
	"time"

	"github.com/sakif/taskflow/internal/slug"
)

// Task is a single to-do item owned by exactly one User.
//
// Slug is the public, URL-safe identifier used by /task/{slug}. It is derived
// from the title once, at first save, and never regenerated afterwards, so
// links keep working after the title is edited.
type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
	IsDone      bool      `json:"isDone"`
	Slug        string    `json:"slug"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AssignSlugIfAbsent sets Slug from Title plus a random suffix.
// An existing slug is left untouched.
func (t *Task) AssignSlugIfAbsent() error {
	if t.Slug != "" {
		return nil
	}
	s, err := slug.Unique(t.Title)
	if err != nil {
		return err
	}
	t.Slug = s
	return nil
}

// OwnedBy reports whether userID owns the task.
func (t *Task) OwnedBy(userID string) bool {
	return userID != "" && t.UserID == userID
}
