package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/model"
	"github.com/sakif/taskflow/internal/repository"
	"github.com/sakif/taskflow/internal/validate"
)

// Validation limits, shared with the struct tags on TaskInput.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 500
)

// TaskInput carries the user-editable fields of a task.
type TaskInput struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=500"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// normalize trims surrounding whitespace so "  " counts as an empty title.
func (in TaskInput) normalize() TaskInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// TaskService handles business logic for tasks.
//
// OWNERSHIP:
// Reading a task by slug is public. Every write loads the task first and
// compares task.UserID with the acting user, so the checks always run in this
// order and stop at the first failure:
//
//  1. the task exists          → otherwise apperror.ErrNotFound
//  2. the actor owns it        → otherwise apperror.ErrForbidden
//  3. the new values are valid → otherwise apperror.ErrValidation
//
// A rejected call never writes anything.
type TaskService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewTaskService creates a TaskService.
func NewTaskService(store repository.Store, logger *slog.Logger) *TaskService {
	return &TaskService{store: store, logger: logger}
}

// ListOwned returns the user's tasks, soonest due first. Other users' tasks
// never appear.
func (s *TaskService) ListOwned(ctx context.Context, user *model.User) ([]model.Task, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks().ListByOwner(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to list tasks",
			slog.String("user_id", user.ID),
			apperror.Attr(err),
		)
		return nil, err
	}
	return tasks, nil
}

// Create validates input and saves a new, not-done task owned by user.
// The slug is generated from the title when the task is first saved.
func (s *TaskService) Create(ctx context.Context, user *model.User, in TaskInput) (*model.Task, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	in = in.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	task := &model.Task{
		UserID:      user.ID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate.UTC(),
		IsDone:      false,
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.Tasks().Save(ctx, task)
	})
	if err != nil {
		s.logger.Error("failed to create task",
			slog.String("user_id", user.ID),
			apperror.Attr(err),
		)
		return nil, err
	}

	s.logger.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("slug", task.Slug),
		slog.String("user_id", user.ID),
	)
	return task, nil
}

// GetBySlug returns a task by its public slug. No ownership check: task
// detail pages are shareable links.
func (s *TaskService) GetBySlug(ctx context.Context, slug string) (*model.Task, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apperror.NotFound("task", "empty slug")
	}
	return s.store.Tasks().GetBySlug(ctx, slug)
}

// Update replaces the title, description and due date of the task at slug.
// The slug itself is left alone, so existing links keep working.
func (s *TaskService) Update(ctx context.Context, user *model.User, slug string, in TaskInput) (*model.Task, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	in = in.normalize()

	var updated *model.Task
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		task, err := loadOwned(tx, user, func(r repository.TaskRepository) (*model.Task, error) {
			return r.GetBySlug(ctx, slug)
		})
		if err != nil {
			return err
		}
		if err := validate.Struct(in); err != nil {
			return err
		}

		task.Title = in.Title
		task.Description = in.Description
		task.DueDate = in.DueDate.UTC()
		if err := tx.Tasks().Save(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "update", slug, user, err)
		return nil, err
	}

	s.logger.Info("task updated",
		slog.String("task_id", updated.ID),
		slog.String("slug", updated.Slug),
	)
	return updated, nil
}

// Delete removes the task at slug.
func (s *TaskService) Delete(ctx context.Context, user *model.User, slug string) error {
	if err := requireUser(user); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		task, err := loadOwned(tx, user, func(r repository.TaskRepository) (*model.Task, error) {
			return r.GetBySlug(ctx, slug)
		})
		if err != nil {
			return err
		}
		return tx.Tasks().Delete(ctx, task.ID)
	})
	if err != nil {
		s.logFailure(ctx, "delete", slug, user, err)
		return err
	}

	s.logger.Info("task deleted", slog.String("slug", slug), slog.String("user_id", user.ID))
	return nil
}

// ToggleCompletion flips IsDone on the task with the given id and returns the
// updated task. Calling it twice restores the original state.
func (s *TaskService) ToggleCompletion(ctx context.Context, user *model.User, taskID string) (*model.Task, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	var toggled *model.Task
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		task, err := loadOwned(tx, user, func(r repository.TaskRepository) (*model.Task, error) {
			return r.GetByID(ctx, taskID)
		})
		if err != nil {
			return err
		}
		task.IsDone = !task.IsDone
		if err := tx.Tasks().Save(ctx, task); err != nil {
			return err
		}
		toggled = task
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "toggle", taskID, user, err)
		return nil, err
	}

	s.logger.Info("task toggled",
		slog.String("task_id", toggled.ID),
		slog.Bool("is_done", toggled.IsDone),
	)
	return toggled, nil
}

// loadOwned fetches a task through get and checks that user owns it.
func loadOwned(
	tx repository.Store,
	user *model.User,
	get func(repository.TaskRepository) (*model.Task, error),
) (*model.Task, error) {
	task, err := get(tx.Tasks())
	if err != nil {
		return nil, err
	}
	if !task.OwnedBy(user.ID) {
		return nil, apperror.Forbidden("you do not have permission to change this task")
	}
	return task, nil
}

func requireUser(user *model.User) error {
	if user == nil || user.ID == "" {
		return apperror.Unauthenticated("authentication required")
	}
	return nil
}

// logFailure logs store failures at ERROR and expected rejections (not found,
// forbidden, invalid) at INFO, so alerts only fire for real problems.
func (s *TaskService) logFailure(ctx context.Context, op, key string, user *model.User, err error) {
	level := slog.LevelInfo
	if apperror.IsInternal(err) {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, fmt.Sprintf("task %s failed", op),
		slog.String("key", key),
		slog.String("user_id", user.ID),
		apperror.Attr(err),
	)
}
