package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/taskpanel/taskpanel/internal/database"
	"github.com/taskpanel/taskpanel/internal/events"
	"github.com/taskpanel/taskpanel/internal/models"
	"github.com/taskpanel/taskpanel/internal/notify"
	"github.com/taskpanel/taskpanel/internal/request"
	"github.com/taskpanel/taskpanel/internal/validation"
	"go.uber.org/zap"
)

const (
	// MaxTaskDescriptionLength is the maximum length of a task description
	MaxTaskDescriptionLength = 10000

	// ConfirmTokenHeader carries the confirmation token for destructive requests
	ConfirmTokenHeader = "X-Confirm-Token"

	deleteAction = "delete"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskRepo database.TaskRepositoryInterface
	bus      events.Publisher
	confirm  notify.Confirmer
	log      *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskRepo database.TaskRepositoryInterface, bus events.Publisher, confirm notify.Confirmer, log *zap.Logger) *TaskHandler {
	return &TaskHandler{taskRepo: taskRepo, bus: bus, confirm: confirm, log: log}
}

// RegisterRoutes registers task routes on the given router.
// The router should already carry the /tasks prefix.
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.CompleteTask).Methods("POST")
	r.HandleFunc("/{id}/reopen", h.ReopenTask).Methods("POST")
	r.HandleFunc("/{id}/archive", h.ArchiveTask).Methods("POST")
	r.HandleFunc("/{id}/unarchive", h.UnarchiveTask).Methods("POST")
	r.HandleFunc("/{id}/delete-request", h.RequestDelete).Methods("POST")
}

// CreateTaskRequest represents a create task request
type CreateTaskRequest struct {
	Description string  `json:"description" validate:"required,min=1,max=10000"`
	DueDate     *string `json:"due_date,omitempty" validate:"omitempty,due_date"`
}

// UpdateTaskRequest represents an edit request. Only description and
// due_date can change; a present-but-empty due_date clears it.
type UpdateTaskRequest struct {
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

// ListTasksResponse represents the response for listing tasks
type ListTasksResponse struct {
	Tasks []*models.Task  `json:"tasks"`
	View  models.TaskView `json:"view"`
	Total int             `json:"total"`
}

// MutationResponse carries the affected task plus a user-facing notice
type MutationResponse struct {
	Task   *models.Task   `json:"task,omitempty"`
	Notice *notify.Notice `json:"notice"`
}

// DeleteRequestResponse carries a single-use confirmation token
type DeleteRequestResponse struct {
	ConfirmationToken string         `json:"confirmation_token"`
	ExpiresInSeconds  int            `json:"expires_in_seconds"`
	Notice            *notify.Notice `json:"notice"`
}

// ListTasks lists the authenticated user's tasks for a view partition.
// Tasks come back newest first; the optional search parameter applies a
// case-insensitive substring match and limit caps the result.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	view := models.TaskViewActive
	if v := r.URL.Query().Get("view"); v != "" {
		if err := validation.ValidateTaskView(v); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		view = models.TaskView(v)
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	ctx := r.Context()

	// The limit is pushed into the query only when no filtering happens
	// afterwards; otherwise it caps the filtered result
	queryLimit := 0
	if view == models.TaskViewAll && search == "" {
		queryLimit = limit
	}

	tasks, err := h.taskRepo.GetByOwner(ctx, user.Email, queryLimit)
	if err != nil {
		h.log.Error("task_list_failed", zap.String("owner", user.Email), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	filtered := FilterTasks(tasks, view, search)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	respondJSON(w, http.StatusOK, ListTasksResponse{
		Tasks: filtered,
		View:  view,
		Total: len(filtered),
	})
}

// FilterTasks applies the view partition and case-insensitive substring
// search to an already-sorted task list, preserving order.
func FilterTasks(tasks []*models.Task, view models.TaskView, search string) []*models.Task {
	needle := strings.ToLower(search)
	filtered := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.InView(view) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(t.Description), needle) {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

// CreateTask creates a new task owned by the authenticated user
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req CreateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", validationErrors[0].Error()))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return
	}

	req.Description = validation.SanitizeText(req.Description)
	if req.Description == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Description is required and cannot be empty after sanitization")
		return
	}
	if len(req.Description) > MaxTaskDescriptionLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Description exceeds maximum length of %d characters", MaxTaskDescriptionLength))
		return
	}

	var dueDate *string
	if req.DueDate != nil && *req.DueDate != "" {
		if err := validation.ValidateDueDate(*req.DueDate); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		dueDate = req.DueDate
	}

	ctx := r.Context()
	task := &models.Task{
		ID:          uuid.New(),
		UserID:      user.ID,
		Owner:       user.Email,
		Description: req.Description,
		DueDate:     dueDate,
	}

	if err := h.taskRepo.Create(ctx, task); err != nil {
		h.log.Error("task_create_failed", zap.String("owner", user.Email), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Error adding task!")
		return
	}

	h.publish(ctx, events.TypeTaskCreated, task)

	respondJSON(w, http.StatusCreated, MutationResponse{
		Task:   task,
		Notice: notify.Success("Task added successfully!"),
	})
}

// GetTask retrieves a single task (detail view)
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), id, user.Email)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTask overwrites a task's description and due date (edit semantics).
// Completion and archive state are untouched; use the dedicated endpoints.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	task, err := h.taskRepo.GetByID(ctx, id, user.Email)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	var req UpdateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	description := task.Description
	if req.Description != nil {
		description = validation.SanitizeText(*req.Description)
		if description == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Description cannot be empty after sanitization")
			return
		}
		if len(description) > MaxTaskDescriptionLength {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Description exceeds maximum length of %d characters", MaxTaskDescriptionLength))
			return
		}
	}

	dueDate := task.DueDate
	if req.DueDate != nil {
		if *req.DueDate == "" {
			dueDate = nil
		} else {
			if err := validation.ValidateDueDate(*req.DueDate); err != nil {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
				return
			}
			dueDate = req.DueDate
		}
	}

	if err := h.taskRepo.UpdateContent(ctx, id, user.Email, description, dueDate); err != nil {
		h.respondMutationError(w, err, "Error updating task!")
		return
	}

	task.Description = description
	task.DueDate = dueDate
	h.publish(ctx, events.TypeTaskUpdated, task)

	respondJSON(w, http.StatusOK, MutationResponse{
		Task:   task,
		Notice: notify.Success("Task updated successfully!"),
	})
}

// CompleteTask marks a task complete
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, true, "Task marked as complete!")
}

// ReopenTask marks a task incomplete again. Reopening an archived task also
// pulls it out of the archive.
func (h *TaskHandler) ReopenTask(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, false, "Task marked as incomplete!")
}

func (h *TaskHandler) setCompleted(w http.ResponseWriter, r *http.Request, completed bool, message string) {
	user, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.taskRepo.SetCompleted(ctx, id, user.Email, completed); err != nil {
		h.respondMutationError(w, err, "Error updating task!")
		return
	}

	task, err := h.taskRepo.GetByID(ctx, id, user.Email)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	h.publish(ctx, events.TypeTaskUpdated, task)

	respondJSON(w, http.StatusOK, MutationResponse{
		Task:   task,
		Notice: notify.Success(message),
	})
}

// ArchiveTask moves a completed task into the archive. Archiving an
// incomplete task is rejected.
func (h *TaskHandler) ArchiveTask(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	task, err := h.taskRepo.GetByID(ctx, id, user.Email)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	if !task.Completed {
		respondJSONError(w, http.StatusConflict, "Conflict", "Only completed tasks can be archived")
		return
	}
	if task.Archived {
		respondJSON(w, http.StatusOK, MutationResponse{
			Task:   task,
			Notice: notify.Info("Task is already archived"),
		})
		return
	}

	if err := h.taskRepo.SetArchived(ctx, id, user.Email, true); err != nil {
		h.respondMutationError(w, err, "Error saving task!")
		return
	}

	task, err = h.taskRepo.GetByID(ctx, id, user.Email)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	h.publish(ctx, events.TypeTaskUpdated, task)

	respondJSON(w, http.StatusOK, MutationResponse{
		Task:   task,
		Notice: notify.Success("Task saved successfully!"),
	})
}

// UnarchiveTask restores an archived task. The task stays completed; the
// archive timestamp is cleared.
func (h *TaskHandler) UnarchiveTask(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.taskRepo.SetArchived(ctx, id, user.Email, false); err != nil {
		h.respondMutationError(w, err, "Error restoring task!")
		return
	}

	task, err := h.taskRepo.GetByID(ctx, id, user.Email)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	h.publish(ctx, events.TypeTaskUpdated, task)

	respondJSON(w, http.StatusOK, MutationResponse{
		Task:   task,
		Notice: notify.Success("Task restored successfully!"),
	})
}

// RequestDelete issues a single-use confirmation token for deleting a task
func (h *TaskHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if _, err := h.taskRepo.GetByID(ctx, id, user.Email); err != nil {
		h.respondLookupError(w, err)
		return
	}

	token, err := h.confirm.Request(ctx, user.Email, deleteAction, id)
	if err != nil {
		h.log.Error("confirmation_request_failed", zap.String("task_id", id.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to issue confirmation token")
		return
	}

	respondJSON(w, http.StatusOK, DeleteRequestResponse{
		ConfirmationToken: token,
		ExpiresInSeconds:  int(notify.ConfirmationTTL.Seconds()),
		Notice:            notify.Warning("Confirm to permanently delete this task."),
	})
}

// DeleteTask permanently deletes a task. The request must present the
// confirmation token issued by RequestDelete; a missing, expired or
// mismatched token is rejected without touching the task.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	token := r.Header.Get(ConfirmTokenHeader)
	if token == "" {
		token = r.URL.Query().Get("confirm_token")
	}

	ctx := r.Context()
	confirmed, err := h.confirm.Resolve(ctx, token, user.Email, deleteAction, id)
	if err != nil {
		h.log.Error("confirmation_resolve_failed", zap.String("task_id", id.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to verify confirmation token")
		return
	}
	if !confirmed {
		respondJSONError(w, http.StatusConflict, "Conflict", "Deletion not confirmed: request a confirmation token first")
		return
	}

	task, err := h.taskRepo.GetByID(ctx, id, user.Email)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	if err := h.taskRepo.Delete(ctx, id, user.Email); err != nil {
		h.respondMutationError(w, err, "Error deleting task!")
		return
	}

	h.publish(ctx, events.TypeTaskDeleted, task)

	respondJSON(w, http.StatusOK, MutationResponse{
		Notice: notify.Success("Task deleted successfully!"),
	})
}

// taskRequest extracts the session user and the task id path variable
func (h *TaskHandler) taskRequest(w http.ResponseWriter, r *http.Request) (*models.User, uuid.UUID, bool) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return nil, uuid.Nil, false
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return nil, uuid.Nil, false
	}

	return user, id, true
}

func (h *TaskHandler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrTaskNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve task")
}

func (h *TaskHandler) respondMutationError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, database.ErrTaskNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}
	h.log.Error("task_mutation_failed", zap.Error(err))
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", message)
}

// publish emits a change event. Publish failures are logged, never surfaced:
// the write already committed and list reads stay correct without the feed.
func (h *TaskHandler) publish(ctx context.Context, eventType events.Type, task *models.Task) {
	event := events.NewEvent(eventType, task.Owner, task.ID)
	event.Description = task.Description
	if task.DueDate != nil {
		event.DueDate = *task.DueDate
	}

	if err := h.bus.Publish(ctx, event); err != nil {
		h.log.Warn("event_publish_failed",
			zap.String("event_type", string(eventType)),
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
	}
}

// decodeBody decodes a JSON request body, handling the request size cap
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}
	return true
}
