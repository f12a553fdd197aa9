package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskpanel/taskpanel/internal/database"
	"github.com/taskpanel/taskpanel/internal/events"
	"go.uber.org/zap"
)

// DefaultScanInterval is how often the reminder scanner checks for tasks
// coming due.
const DefaultScanInterval = 15 * time.Minute

// Reminder scans for tasks whose due date falls inside the reminder window
// and publishes a due-soon event per task. Each task is reminded at most once
// per due date; users who went inactive have their reminders paused.
type Reminder struct {
	taskRepo     database.TaskRepositoryInterface
	activityRepo database.UserActivityRepositoryInterface
	bus          events.Publisher
	logger       *zap.Logger
	window       time.Duration
	interval     time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
}

// NewReminder creates a reminder scanner
func NewReminder(taskRepo database.TaskRepositoryInterface, activityRepo database.UserActivityRepositoryInterface, bus events.Publisher, window time.Duration, logger *zap.Logger) *Reminder {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Reminder{
		taskRepo:     taskRepo,
		activityRepo: activityRepo,
		bus:          bus,
		logger:       logger,
		window:       window,
		interval:     DefaultScanInterval,
		sent:         make(map[string]time.Time),
	}
}

// SetInterval overrides the scan interval (used by tests)
func (r *Reminder) SetInterval(interval time.Duration) {
	if interval > 0 {
		r.interval = interval
	}
}

// Run scans on a ticker until ctx is cancelled
func (r *Reminder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Scan immediately on startup rather than waiting one interval
	if err := r.Scan(ctx); err != nil {
		r.logger.Warn("reminder_scan_failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Scan(ctx); err != nil {
				r.logger.Warn("reminder_scan_failed", zap.Error(err))
			}
			r.expireSent()
		}
	}
}

// Scan publishes a due-soon event for every not-yet-reminded task due inside
// the window. Per-task failures are logged and skipped so one bad row cannot
// stall the rest of the batch.
func (r *Reminder) Scan(ctx context.Context) error {
	tasks, err := r.taskRepo.ListDueSoon(ctx, r.window)
	if err != nil {
		return fmt.Errorf("failed to list due tasks: %w", err)
	}

	pausedCache := make(map[uuid.UUID]bool)
	published := 0

	for _, task := range tasks {
		if task.DueDate == nil {
			continue
		}

		key := task.ID.String() + "|" + *task.DueDate
		if r.alreadySent(key) {
			continue
		}

		paused, ok := pausedCache[task.UserID]
		if !ok {
			paused, err = r.activityRepo.IsRemindersPaused(ctx, task.UserID)
			if err != nil {
				r.logger.Warn("reminder_pause_check_failed",
					zap.String("user_id", task.UserID.String()),
					zap.Error(err),
				)
				continue
			}
			pausedCache[task.UserID] = paused
		}
		if paused {
			continue
		}

		event := events.NewEvent(events.TypeTaskDueSoon, task.Owner, task.ID)
		event.Description = task.Description
		event.DueDate = *task.DueDate

		if err := r.bus.Publish(ctx, event); err != nil {
			r.logger.Error("reminder_publish_failed",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
			continue
		}

		r.markSent(key)
		published++
	}

	r.logger.Info("reminder_scan_complete",
		zap.Int("due_tasks", len(tasks)),
		zap.Int("published", published),
	)

	return nil
}

func (r *Reminder) alreadySent(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sent[key]
	return ok
}

func (r *Reminder) markSent(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[key] = time.Now()
}

// expireSent drops dedupe entries older than two windows so the map stays
// bounded across long worker uptimes
func (r *Reminder) expireSent() {
	cutoff := time.Now().Add(-2 * r.window)
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, sentAt := range r.sent {
		if sentAt.Before(cutoff) {
			delete(r.sent, key)
		}
	}
}
