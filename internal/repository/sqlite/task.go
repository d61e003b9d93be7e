package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/model"
	"github.com/sakif/taskflow/internal/repository"
)

// TaskDB implements repository.TaskRepository.
type TaskDB struct {
	q querier
}

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X, so a
// missing method shows up here instead of at some distant call site.
var _ repository.TaskRepository = (*TaskDB)(nil)

const taskColumns = `id, user_id, title, description, due_date, is_done, slug, created_at, updated_at`

// Save persists a task.
//
// FIRST SAVE:
//  1. AssignSlugIfAbsent derives the slug from the title (plus random suffix)
//  2. a new xid becomes the primary key
//  3. INSERT; a slug collision surfaces as apperror.ErrDuplicate and is not retried
//
// LATER SAVES:
// UPDATE the mutable columns. slug, user_id and created_at are never rewritten,
// so the public URL of a task is stable across edits.
func (t *TaskDB) Save(ctx context.Context, task *model.Task) error {
	if err := task.AssignSlugIfAbsent(); err != nil {
		return fmt.Errorf("sqlite: assigning slug: %w", err)
	}

	now := time.Now().UTC()

	if task.ID == "" {
		id := xid.New().String()
		_, err := t.q.ExecContext(ctx,
			`INSERT INTO tasks (`+taskColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			task.UserID,
			task.Title,
			task.Description,
			task.DueDate,
			task.IsDone,
			task.Slug,
			now,
			now,
		)
		if err != nil {
			return classify("creating task", err)
		}
		task.ID = id
		task.CreatedAt = now
		task.UpdatedAt = now
		return nil
	}

	result, err := t.q.ExecContext(ctx,
		`UPDATE tasks
		 SET title = ?, description = ?, due_date = ?, is_done = ?, updated_at = ?
		 WHERE id = ?`,
		task.Title,
		task.Description,
		task.DueDate,
		task.IsDone,
		now,
		task.ID,
	)
	if err != nil {
		return classify(fmt.Sprintf("updating task %s", task.ID), err)
	}

	// RowsAffected() == 0 means the WHERE clause matched nothing → not found.
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperror.Store("checking rows affected", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("task", "id "+task.ID)
	}

	task.UpdatedAt = now
	return nil
}

// GetByID retrieves a single task by its ID.
func (t *TaskDB) GetByID(ctx context.Context, id string) (*model.Task, error) {
	return t.getOne(ctx, "id", id)
}

// GetBySlug retrieves a single task by its public slug.
func (t *TaskDB) GetBySlug(ctx context.Context, slug string) (*model.Task, error) {
	return t.getOne(ctx, "slug", slug)
}

func (t *TaskDB) getOne(ctx context.Context, column, value string) (*model.Task, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE `+column+` = ?`,
		value,
	)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task", column+" "+value)
		}
		return nil, apperror.Store(fmt.Sprintf("getting task by %s", column), err)
	}
	return task, nil
}

// ListByOwner returns every task owned by userID, soonest due first.
//
// OWNERSHIP SCOPING:
// The WHERE user_id = ? clause is the only thing standing between one user
// and another user's tasks on the home page, so it lives here in SQL rather
// than as a filter applied after loading everything.
func (t *TaskDB) ListByOwner(ctx context.Context, userID string) ([]model.Task, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE user_id = ?
		 ORDER BY due_date ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, apperror.Store("listing tasks", err)
	}
	// CRITICAL: always close rows when done: an open *sql.Rows pins a connection.
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, apperror.Store("scanning task row", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Store("iterating tasks", err)
	}

	return tasks, nil
}

// Delete removes a task by its ID.
func (t *TaskDB) Delete(ctx context.Context, id string) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return apperror.Store(fmt.Sprintf("deleting task %s", id), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperror.Store("checking rows affected", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("task", "id "+id)
	}

	return nil
}

// Count returns the total number of tasks across all users.
func (t *TaskDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, apperror.Store("counting tasks", err)
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one row in taskColumns order.
func scanTask(s rowScanner) (*model.Task, error) {
	var task model.Task
	err := s.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.IsDone,
		&task.Slug,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}
