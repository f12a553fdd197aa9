package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskpanel/taskpanel/internal/database"
	"github.com/taskpanel/taskpanel/internal/events"
	"github.com/taskpanel/taskpanel/internal/models"
	"github.com/taskpanel/taskpanel/internal/request"
)

// fakeTaskRepo is an in-memory TaskRepositoryInterface for handler tests
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
	err   error
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[uuid.UUID]*models.Task)}
}

func (f *fakeTaskRepo) Create(ctx context.Context, task *models.Task) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	clone := *task
	f.tasks[task.ID] = &clone
	return nil
}

func (f *fakeTaskRepo) GetByID(ctx context.Context, id uuid.UUID, owner string) (*models.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok || task.Owner != owner {
		return nil, database.ErrTaskNotFound
	}
	clone := *task
	return &clone, nil
}

func (f *fakeTaskRepo) GetByOwner(ctx context.Context, owner string, limit int) ([]*models.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Task
	for _, task := range f.tasks {
		if task.Owner == owner {
			clone := *task
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTaskRepo) UpdateContent(ctx context.Context, id uuid.UUID, owner, description string, dueDate *string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok || task.Owner != owner {
		return database.ErrTaskNotFound
	}
	task.Description = description
	task.DueDate = dueDate
	task.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTaskRepo) SetCompleted(ctx context.Context, id uuid.UUID, owner string, completed bool) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok || task.Owner != owner {
		return database.ErrTaskNotFound
	}
	task.Completed = completed
	if !completed && task.Archived {
		task.Archived = false
		task.ArchivedAt = nil
	}
	task.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTaskRepo) SetArchived(ctx context.Context, id uuid.UUID, owner string, archived bool) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok || task.Owner != owner {
		return database.ErrTaskNotFound
	}
	task.Archived = archived
	if archived {
		now := time.Now()
		task.ArchivedAt = &now
	} else {
		task.ArchivedAt = nil
	}
	task.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTaskRepo) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok || task.Owner != owner {
		return database.ErrTaskNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskRepo) ListDueSoon(ctx context.Context, window time.Duration) ([]*models.Task, error) {
	return nil, nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event *events.Event) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) HealthCheck(ctx context.Context) error { return f.err }

func (f *fakePublisher) published() []*events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*events.Event, len(f.events))
	copy(out, f.events)
	return out
}

// fakeConfirmer hands out a fixed token and tracks consumption
type fakeConfirmer struct {
	mu       sync.Mutex
	issued   map[string]string // token -> owner|action|id
	err      error
	requests int
}

func newFakeConfirmer() *fakeConfirmer {
	return &fakeConfirmer{issued: make(map[string]string)}
}

func (f *fakeConfirmer) Request(ctx context.Context, owner, action string, resourceID uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	token := uuid.NewString()
	f.issued[token] = owner + "|" + action + "|" + resourceID.String()
	return token, nil
}

func (f *fakeConfirmer) Resolve(ctx context.Context, token, owner, action string, resourceID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	binding, ok := f.issued[token]
	if !ok || binding != owner+"|"+action+"|"+resourceID.String() {
		return false, nil
	}
	delete(f.issued, token)
	return true, nil
}

// withTestUser attaches a session user to the request context
func withTestUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(request.WithUser(r.Context(), user))
}

func testUser() *models.User {
	return &models.User{
		ID:    uuid.New(),
		Email: "dev@example.com",
	}
}

func stringPtr(s string) *string {
	return &s
}
