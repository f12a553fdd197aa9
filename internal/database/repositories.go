package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskpanel/taskpanel/internal/models"
)

// TaskRepositoryInterface defines the interface for task repository
// operations. This interface enables better testability by allowing mock
// implementations.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID, owner string) (*models.Task, error)
	GetByOwner(ctx context.Context, owner string, limit int) ([]*models.Task, error)
	UpdateContent(ctx context.Context, id uuid.UUID, owner, description string, dueDate *string) error
	SetCompleted(ctx context.Context, id uuid.UUID, owner string, completed bool) error
	SetArchived(ctx context.Context, id uuid.UUID, owner string, archived bool) error
	Delete(ctx context.Context, id uuid.UUID, owner string) error
	ListDueSoon(ctx context.Context, window time.Duration) ([]*models.Task, error)
}

// UserActivityRepositoryInterface defines the interface for user activity
// repository operations
type UserActivityRepositoryInterface interface {
	UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error
	IsRemindersPaused(ctx context.Context, userID uuid.UUID) (bool, error)
	GetUsersNeedingReminderPause(ctx context.Context) ([]uuid.UUID, error)
	SetRemindersPaused(ctx context.Context, userID uuid.UUID, paused bool) error
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface         = (*TaskRepository)(nil)
	_ UserActivityRepositoryInterface = (*UserActivityRepository)(nil)
)
