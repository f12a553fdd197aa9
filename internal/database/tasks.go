package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskpanel/taskpanel/internal/models"
	"go.uber.org/zap"
)

// ErrTaskNotFound is returned when a task does not exist or does not belong
// to the requesting owner. Ownership is enforced here, at the storage
// boundary: every query carries the owner partition key.
var ErrTaskNotFound = errors.New("task not found")

// TaskRepository handles task database operations
type TaskRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// SetLogger attaches a logger for slow-path diagnostics
func (r *TaskRepository) SetLogger(logger *zap.Logger) {
	r.logger = logger
}

const taskColumns = `id, user_id, owner, description, due_date, completed, archived, archived_at, created_at, updated_at`

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (id, user_id, owner, description, due_date, completed, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	var dueDate sql.NullString
	if task.DueDate != nil && *task.DueDate != "" {
		dueDate = sql.NullString{String: *task.DueDate, Valid: true}
	}

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.Owner,
		task.Description,
		dueDate,
		task.Completed,
		task.Archived,
		now,
		now,
	).Scan(&task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by ID scoped to the given owner
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID, owner string) (*models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1 AND owner = $2`, taskColumns)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, owner))
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// GetByOwner retrieves all tasks for an owner, newest first. A limit of 0
// returns the full owned set (the list views never paginate); a positive
// limit caps the result (the dashboard shows only the newest three).
func (r *TaskRepository) GetByOwner(ctx context.Context, owner string, limit int) ([]*models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE owner = $1 ORDER BY created_at DESC`, taskColumns)
	args := []any{owner}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// UpdateContent overwrites only description and due date on an existing
// task, the edit-modal write path. All other fields are untouched.
func (r *TaskRepository) UpdateContent(ctx context.Context, id uuid.UUID, owner, description string, dueDate *string) error {
	query := `
		UPDATE tasks
		SET description = $3, due_date = $4, updated_at = $5
		WHERE id = $1 AND owner = $2
	`

	var due sql.NullString
	if dueDate != nil && *dueDate != "" {
		due = sql.NullString{String: *dueDate, Valid: true}
	}

	return r.execTaskUpdate(ctx, query, id, owner, description, due, time.Now())
}

// SetCompleted sets the completed flag. Reopening an archived task also
// unarchives it and clears the archive stamp.
func (r *TaskRepository) SetCompleted(ctx context.Context, id uuid.UUID, owner string, completed bool) error {
	query := `
		UPDATE tasks
		SET completed = $3,
		    archived = CASE WHEN $3 THEN archived ELSE FALSE END,
		    archived_at = CASE WHEN $3 THEN archived_at ELSE NULL END,
		    updated_at = $4
		WHERE id = $1 AND owner = $2
	`

	return r.execTaskUpdate(ctx, query, id, owner, completed, time.Now())
}

// SetArchived sets the archived flag, stamping archived_at on archive and
// clearing it on unarchive.
func (r *TaskRepository) SetArchived(ctx context.Context, id uuid.UUID, owner string, archived bool) error {
	query := `
		UPDATE tasks
		SET archived = $3,
		    archived_at = CASE WHEN $3 THEN $4::timestamptz ELSE NULL END,
		    updated_at = $4
		WHERE id = $1 AND owner = $2
	`

	return r.execTaskUpdate(ctx, query, id, owner, archived, time.Now())
}

// Delete deletes a task. The delete is hard: a later GetByID returns
// ErrTaskNotFound.
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND owner = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// ListDueSoon returns unfinished, unarchived tasks whose due date falls
// within the window starting today. Malformed legacy due dates are skipped
// by the date cast guard.
func (r *TaskRepository) ListDueSoon(ctx context.Context, window time.Duration) ([]*models.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE completed = FALSE
		  AND archived = FALSE
		  AND due_date IS NOT NULL
		  AND due_date ~ '^\d{4}-\d{2}-\d{2}$'
		  AND due_date::date >= CURRENT_DATE
		  AND due_date::date <= $1::date
		ORDER BY due_date ASC
	`, taskColumns)

	horizon := time.Now().Add(window).Format("2006-01-02")

	rows, err := r.db.QueryContext(ctx, query, horizon)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepository) execTaskUpdate(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var dueDate sql.NullString
	var archivedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Owner,
		&task.Description,
		&dueDate,
		&task.Completed,
		&task.Archived,
		&archivedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		task.DueDate = &dueDate.String
	}
	if archivedAt.Valid {
		task.ArchivedAt = &archivedAt.Time
	}

	return task, nil
}
