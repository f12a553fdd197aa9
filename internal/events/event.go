package events

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a task change event
type Type string

const (
	// TypeTaskCreated is published after a task is inserted
	TypeTaskCreated Type = "task_created"
	// TypeTaskUpdated is published after any in-place mutation (edit,
	// complete/reopen, archive/unarchive)
	TypeTaskUpdated Type = "task_updated"
	// TypeTaskDeleted is published after a hard delete
	TypeTaskDeleted Type = "task_deleted"
	// TypeTaskDueSoon is published by the reminder worker for tasks due
	// within the reminder window
	TypeTaskDueSoon Type = "task_due_soon"
)

// Event describes one committed change to a task collection. Owner scopes
// the event: only that owner's feed subscribers are refreshed.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Type        Type      `json:"type"`
	Owner       string    `json:"owner"`
	TaskID      uuid.UUID `json:"task_id"`
	Description string    `json:"description,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewEvent creates an event with a fresh id and timestamp
func NewEvent(eventType Type, owner string, taskID uuid.UUID) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		Owner:      owner,
		TaskID:     taskID,
		OccurredAt: time.Now(),
	}
}
