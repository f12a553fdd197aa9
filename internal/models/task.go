package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskView selects which partition of a user's tasks a list request returns
type TaskView string

const (
	TaskViewActive    TaskView = "active"
	TaskViewCompleted TaskView = "completed"
	TaskViewArchived  TaskView = "archived"
	TaskViewAll       TaskView = "all"
)

// Task represents a single to-do record owned by one user.
// Owner is the email of the creating user and is the partition key for
// every read; it never changes after creation.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Owner       string     `json:"owner"`
	Description string     `json:"description"`
	DueDate     *string    `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	Archived    bool       `json:"archived"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// State reports which lifecycle partition the task is in. A task is exactly
// one of active-incomplete, active-complete, archived.
func (t *Task) State() TaskView {
	if t.Archived {
		return TaskViewArchived
	}
	if t.Completed {
		return TaskViewCompleted
	}
	return TaskViewActive
}

// InView reports whether the task belongs to the given list view partition.
func (t *Task) InView(view TaskView) bool {
	switch view {
	case TaskViewActive:
		return !t.Archived
	case TaskViewCompleted:
		return t.Completed && !t.Archived
	case TaskViewArchived:
		return t.Archived
	case TaskViewAll:
		return true
	default:
		return false
	}
}
