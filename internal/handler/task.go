package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/taskflow/internal/apperror"
	"github.com/sakif/taskflow/internal/auth"
	"github.com/sakif/taskflow/internal/middleware"
	"github.com/sakif/taskflow/internal/model"
	"github.com/sakif/taskflow/internal/service"
)

// TaskHandler serves the task pages and the task write endpoints.
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

func (t *taskRequest) bindForm(v url.Values) {
	t.Title = v.Get("title")
	t.Description = v.Get("description")
	t.DueDate = v.Get("due_date")
}

// input converts the raw request into service input. An unparseable due date
// is reported as a validation error on due_date.
func (t taskRequest) input() (service.TaskInput, error) {
	due, err := parseDueDate(t.DueDate)
	if err != nil {
		return service.TaskInput{}, err
	}
	return service.TaskInput{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     due,
	}, nil
}

// HomeResponse is the owner's task list plus any pending flash message.
type HomeResponse struct {
	User  *model.User  `json:"user"`
	Tasks []model.Task `json:"tasks"`
	Flash string       `json:"flash,omitempty"`
}

// TaskDetailResponse is one task as seen by the current visitor.
type TaskDetailResponse struct {
	Task    *model.Task `json:"task"`
	IsOwner bool        `json:"is_owner"`
}

// HandleHome lists the logged-in user's tasks.
//
// HTTP: GET /
// Auth: Required
func (h *TaskHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	tasks, err := h.tasks.ListOwned(r.Context(), user)
	if err != nil {
		logIfInternal(h.logger, r, "listing tasks", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HomeResponse{
		User:  user,
		Tasks: tasks,
		Flash: popFlash(w, r),
	})
}

// HandleDetail shows a single task. Anyone with the link can view it.
//
// HTTP: GET /task/{slug}
//
// URL PARAMETERS:
// chi.URLParam(r, "slug") extracts the {slug} segment. For GET
// /task/buy-milk-3k9x0q2a it returns "buy-milk-3k9x0q2a".
func (h *TaskHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		logIfInternal(h.logger, r, "loading task", err)
		writeError(w, err)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, TaskDetailResponse{
		Task:    task,
		IsOwner: user != nil && task.OwnedBy(user.ID),
	})
}

// HandleCreate adds a task for the current user.
//
// HTTP: POST /admin/task
// REQUEST BODY: {"title":"Buy milk","description":"","due_date":"2024-01-01T09:00"}
// (or the same fields as a form post)
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	task, err := h.withInput(w, r, func(in service.TaskInput) (*model.Task, error) {
		return h.tasks.Create(r.Context(), user, in)
	})
	if err != nil {
		h.writeFailure(w, r, err, "/")
		return
	}

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusCreated, task)
		return
	}
	redirectWithFlash(w, r, "/", "Task created successfully.")
}

// HandleUpdate edits the task at {slug}.
//
// HTTP: POST or PUT /admin/task/{slug}/edit
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	slug := chi.URLParam(r, "slug")

	task, err := h.withInput(w, r, func(in service.TaskInput) (*model.Task, error) {
		return h.tasks.Update(r.Context(), user, slug, in)
	})
	if err != nil {
		h.writeFailure(w, r, err, "/task/"+url.PathEscape(slug))
		return
	}

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, task)
		return
	}
	redirectWithFlash(w, r, "/task/"+url.PathEscape(task.Slug), "Task updated successfully.")
}

// HandleDelete removes the task at {slug}.
//
// HTTP: POST or DELETE /admin/task/{slug}/delete
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := h.tasks.Delete(r.Context(), user, chi.URLParam(r, "slug")); err != nil {
		h.writeFailure(w, r, err, "/")
		return
	}

	if middleware.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent) // 204: done, nothing to return
		return
	}
	redirectWithFlash(w, r, "/", "Task deleted.")
}

// HandleToggle flips the completion flag of the task with {id}.
//
// HTTP: POST /toggle/{id}
func (h *TaskHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	task, err := h.tasks.ToggleCompletion(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, r, err, "/")
		return
	}

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, task)
		return
	}
	msg := "Task marked as not done."
	if task.IsDone {
		msg = "Task marked as done."
	}
	redirectWithFlash(w, r, "/", msg)
}

// withInput binds and converts the request body, then hands it to apply.
func (h *TaskHandler) withInput(
	w http.ResponseWriter,
	r *http.Request,
	apply func(service.TaskInput) (*model.Task, error),
) (*model.Task, error) {
	var req taskRequest
	if err := bind(w, r, &req); err != nil {
		return nil, err
	}
	in, err := req.input()
	if err != nil {
		return nil, err
	}
	return apply(in)
}

// writeFailure answers a failed write.
//
// API callers always get the JSON error. Browsers get a flash and a redirect
// back to `back` for mistakes they can fix (invalid input, duplicates); for
// not found, forbidden and internal errors there is no form to go back to, so
// they get the status code and the JSON error too.
func (h *TaskHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error, back string) {
	logIfInternal(h.logger, r, "task write failed", err)

	fixable := errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrDuplicate)
	if middleware.WantsJSON(r) || !fixable {
		writeError(w, err)
		return
	}
	redirectWithFlash(w, r, back, userMessage(err))
}
