package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/taskpanel/taskpanel/internal/events"
	"github.com/taskpanel/taskpanel/internal/models"
	"go.uber.org/zap"
)

type dueSoonRepo struct {
	tasks []*models.Task
	err   error
}

func (r *dueSoonRepo) ListDueSoon(ctx context.Context, window time.Duration) ([]*models.Task, error) {
	return r.tasks, r.err
}

func (r *dueSoonRepo) Create(ctx context.Context, task *models.Task) error { return nil }
func (r *dueSoonRepo) GetByID(ctx context.Context, id uuid.UUID, owner string) (*models.Task, error) {
	return nil, nil
}
func (r *dueSoonRepo) GetByOwner(ctx context.Context, owner string, limit int) ([]*models.Task, error) {
	return nil, nil
}
func (r *dueSoonRepo) UpdateContent(ctx context.Context, id uuid.UUID, owner, description string, dueDate *string) error {
	return nil
}
func (r *dueSoonRepo) SetCompleted(ctx context.Context, id uuid.UUID, owner string, completed bool) error {
	return nil
}
func (r *dueSoonRepo) SetArchived(ctx context.Context, id uuid.UUID, owner string, archived bool) error {
	return nil
}
func (r *dueSoonRepo) Delete(ctx context.Context, id uuid.UUID, owner string) error { return nil }

type pausedRepo struct {
	paused map[uuid.UUID]bool
	err    error
	checks int
}

func (r *pausedRepo) IsRemindersPaused(ctx context.Context, userID uuid.UUID) (bool, error) {
	r.checks++
	return r.paused[userID], r.err
}

func (r *pausedRepo) UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error { return nil }
func (r *pausedRepo) GetUsersNeedingReminderPause(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}
func (r *pausedRepo) SetRemindersPaused(ctx context.Context, userID uuid.UUID, paused bool) error {
	return nil
}

type capturingBus struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (b *capturingBus) Publish(ctx context.Context, event *events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, event)
	return nil
}

func (b *capturingBus) Close() error                        { return nil }
func (b *capturingBus) HealthCheck(ctx context.Context) error { return nil }

func (b *capturingBus) published() []*events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*events.Event, len(b.events))
	copy(out, b.events)
	return out
}

func dueTask(owner string, dueDate string) *models.Task {
	return &models.Task{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Owner:       owner,
		Description: "pay rent",
		DueDate:     &dueDate,
	}
}

func TestReminderScanPublishesDueSoon(t *testing.T) {
	t.Parallel()

	task := dueTask("dev@example.com", "2026-09-02")
	repo := &dueSoonRepo{tasks: []*models.Task{task}}
	bus := &capturingBus{}
	reminder := NewReminder(repo, &pausedRepo{}, bus, 24*time.Hour, zap.NewNop())

	if err := reminder.Scan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	published := bus.published()
	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
	event := published[0]
	if event.Type != events.TypeTaskDueSoon {
		t.Errorf("event type = %q, want %q", event.Type, events.TypeTaskDueSoon)
	}
	if event.Owner != task.Owner || event.TaskID != task.ID {
		t.Errorf("event not scoped to the task: %+v", event)
	}
	if event.DueDate != "2026-09-02" {
		t.Errorf("event due date = %q, want 2026-09-02", event.DueDate)
	}
}

func TestReminderScanDeduplicates(t *testing.T) {
	t.Parallel()

	task := dueTask("dev@example.com", "2026-09-02")
	repo := &dueSoonRepo{tasks: []*models.Task{task}}
	bus := &capturingBus{}
	reminder := NewReminder(repo, &pausedRepo{}, bus, 24*time.Hour, zap.NewNop())

	for i := 0; i < 3; i++ {
		if err := reminder.Scan(context.Background()); err != nil {
			t.Fatalf("scan %d failed: %v", i, err)
		}
	}

	if got := len(bus.published()); got != 1 {
		t.Errorf("expected the task to be reminded once, got %d events", got)
	}
}

func TestReminderScanRemindsAgainAfterDueDateChange(t *testing.T) {
	t.Parallel()

	task := dueTask("dev@example.com", "2026-09-02")
	repo := &dueSoonRepo{tasks: []*models.Task{task}}
	bus := &capturingBus{}
	reminder := NewReminder(repo, &pausedRepo{}, bus, 24*time.Hour, zap.NewNop())

	if err := reminder.Scan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	moved := "2026-09-05"
	task.DueDate = &moved
	if err := reminder.Scan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if got := len(bus.published()); got != 2 {
		t.Errorf("expected a fresh reminder for the new due date, got %d events", got)
	}
}

func TestReminderScanSkipsPausedUsers(t *testing.T) {
	t.Parallel()

	active := dueTask("active@example.com", "2026-09-02")
	idle := dueTask("idle@example.com", "2026-09-02")

	repo := &dueSoonRepo{tasks: []*models.Task{active, idle}}
	activity := &pausedRepo{paused: map[uuid.UUID]bool{idle.UserID: true}}
	bus := &capturingBus{}
	reminder := NewReminder(repo, activity, bus, 24*time.Hour, zap.NewNop())

	if err := reminder.Scan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	published := bus.published()
	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
	if published[0].Owner != "active@example.com" {
		t.Errorf("expected only the active user's reminder, got %q", published[0].Owner)
	}
}

func TestReminderScanSkipsTasksWithoutDueDate(t *testing.T) {
	t.Parallel()

	task := &models.Task{ID: uuid.New(), UserID: uuid.New(), Owner: "dev@example.com", Description: "undated"}
	repo := &dueSoonRepo{tasks: []*models.Task{task}}
	bus := &capturingBus{}
	reminder := NewReminder(repo, &pausedRepo{}, bus, 24*time.Hour, zap.NewNop())

	if err := reminder.Scan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if got := len(bus.published()); got != 0 {
		t.Errorf("expected no events for undated tasks, got %d", got)
	}
}

func TestReminderScanRetriesAfterPublishFailure(t *testing.T) {
	t.Parallel()

	task := dueTask("dev@example.com", "2026-09-02")
	repo := &dueSoonRepo{tasks: []*models.Task{task}}
	bus := &capturingBus{err: errors.New("broker unavailable")}
	reminder := NewReminder(repo, &pausedRepo{}, bus, 24*time.Hour, zap.NewNop())

	if err := reminder.Scan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if got := len(bus.published()); got != 0 {
		t.Fatalf("expected no events while the broker is down, got %d", got)
	}

	// A failed publish must not mark the task as reminded
	bus.mu.Lock()
	bus.err = nil
	bus.mu.Unlock()

	if err := reminder.Scan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if got := len(bus.published()); got != 1 {
		t.Errorf("expected the reminder to go out once the broker recovered, got %d events", got)
	}
}

func TestReminderScanSurfacesListError(t *testing.T) {
	t.Parallel()

	repo := &dueSoonRepo{err: errors.New("connection refused")}
	reminder := NewReminder(repo, &pausedRepo{}, &capturingBus{}, 24*time.Hour, zap.NewNop())

	if err := reminder.Scan(context.Background()); err == nil {
		t.Error("expected scan to surface the repository error")
	}
}
