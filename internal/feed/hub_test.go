package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/taskpanel/taskpanel/internal/events"
	"github.com/taskpanel/taskpanel/internal/models"
	"go.uber.org/zap"
)

type snapshotRepo struct {
	mu    sync.Mutex
	tasks map[string][]*models.Task
	err   error
	reads int
}

func newSnapshotRepo() *snapshotRepo {
	return &snapshotRepo{tasks: make(map[string][]*models.Task)}
}

func (r *snapshotRepo) GetByOwner(ctx context.Context, owner string, limit int) ([]*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.err != nil {
		return nil, r.err
	}
	return r.tasks[owner], nil
}

func (r *snapshotRepo) Create(ctx context.Context, task *models.Task) error { return nil }
func (r *snapshotRepo) GetByID(ctx context.Context, id uuid.UUID, owner string) (*models.Task, error) {
	return nil, nil
}
func (r *snapshotRepo) UpdateContent(ctx context.Context, id uuid.UUID, owner, description string, dueDate *string) error {
	return nil
}
func (r *snapshotRepo) SetCompleted(ctx context.Context, id uuid.UUID, owner string, completed bool) error {
	return nil
}
func (r *snapshotRepo) SetArchived(ctx context.Context, id uuid.UUID, owner string, archived bool) error {
	return nil
}
func (r *snapshotRepo) Delete(ctx context.Context, id uuid.UUID, owner string) error { return nil }
func (r *snapshotRepo) ListDueSoon(ctx context.Context, window time.Duration) ([]*models.Task, error) {
	return nil, nil
}

func receiveMessage(t *testing.T, sub *Subscriber) *Message {
	t.Helper()
	select {
	case payload := <-sub.C():
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("failed to decode feed message: %v", err)
		}
		return &msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for feed message")
		return nil
	}
}

func TestHubRefreshDeliversSnapshot(t *testing.T) {
	t.Parallel()

	repo := newSnapshotRepo()
	repo.tasks["dev@example.com"] = []*models.Task{
		{ID: uuid.New(), Owner: "dev@example.com", Description: "first"},
		{ID: uuid.New(), Owner: "dev@example.com", Description: "second"},
	}

	hub := NewHub(repo, zap.NewNop())
	sub := hub.Subscribe("dev@example.com")
	defer sub.Close()

	if err := hub.Refresh(context.Background(), "dev@example.com"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	msg := receiveMessage(t, sub)
	if msg.Type != "snapshot" {
		t.Errorf("expected snapshot message, got %q", msg.Type)
	}
	if len(msg.Tasks) != 2 {
		t.Errorf("expected 2 tasks in snapshot, got %d", len(msg.Tasks))
	}
}

func TestHubRefreshSkipsRepoWithoutSubscribers(t *testing.T) {
	t.Parallel()

	repo := newSnapshotRepo()
	hub := NewHub(repo, zap.NewNop())

	if err := hub.Refresh(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	repo.mu.Lock()
	reads := repo.reads
	repo.mu.Unlock()
	if reads != 0 {
		t.Error("refresh with no subscribers must not hit the repository")
	}
}

func TestHubSnapshotScopedToOwner(t *testing.T) {
	t.Parallel()

	repo := newSnapshotRepo()
	repo.tasks["a@example.com"] = []*models.Task{{ID: uuid.New(), Owner: "a@example.com", Description: "a's task"}}

	hub := NewHub(repo, zap.NewNop())
	subA := hub.Subscribe("a@example.com")
	defer subA.Close()
	subB := hub.Subscribe("b@example.com")
	defer subB.Close()

	if err := hub.Refresh(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	receiveMessage(t, subA)

	select {
	case <-subB.C():
		t.Error("other owners must not receive the snapshot")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSendSnapshotEmptyCollection(t *testing.T) {
	t.Parallel()

	repo := newSnapshotRepo()
	hub := NewHub(repo, zap.NewNop())
	sub := hub.Subscribe("dev@example.com")
	defer sub.Close()

	if err := hub.SendSnapshot(context.Background(), sub); err != nil {
		t.Fatalf("send snapshot failed: %v", err)
	}

	msg := receiveMessage(t, sub)
	if msg.Tasks == nil {
		t.Error("expected empty task array, not null")
	}
	if len(msg.Tasks) != 0 {
		t.Errorf("expected empty snapshot, got %d tasks", len(msg.Tasks))
	}
}

func TestHubRefreshPropagatesRepoError(t *testing.T) {
	t.Parallel()

	repo := newSnapshotRepo()
	repo.err = errors.New("connection refused")

	hub := NewHub(repo, zap.NewNop())
	sub := hub.Subscribe("dev@example.com")
	defer sub.Close()

	if err := hub.Refresh(context.Background(), "dev@example.com"); err == nil {
		t.Error("expected refresh to surface the repository error")
	}
}

func TestHubHandleEventDueSoonBecomesNotice(t *testing.T) {
	t.Parallel()

	repo := newSnapshotRepo()
	hub := NewHub(repo, zap.NewNop())
	sub := hub.Subscribe("dev@example.com")
	defer sub.Close()

	event := events.NewEvent(events.TypeTaskDueSoon, "dev@example.com", uuid.New())
	event.Description = "file taxes"
	event.DueDate = "2026-09-02"

	hub.HandleEvent(context.Background(), event)

	msg := receiveMessage(t, sub)
	if msg.Type != "notice" {
		t.Fatalf("expected notice message, got %q", msg.Type)
	}
	if msg.Notice == nil || msg.Notice.Severity != "warning" {
		t.Errorf("expected warning notice, got %+v", msg.Notice)
	}
}

func TestHubHandleEventMutationRefreshes(t *testing.T) {
	t.Parallel()

	repo := newSnapshotRepo()
	repo.tasks["dev@example.com"] = []*models.Task{{ID: uuid.New(), Owner: "dev@example.com", Description: "only"}}

	hub := NewHub(repo, zap.NewNop())
	sub := hub.Subscribe("dev@example.com")
	defer sub.Close()

	hub.HandleEvent(context.Background(), events.NewEvent(events.TypeTaskCreated, "dev@example.com", uuid.New()))

	msg := receiveMessage(t, sub)
	if msg.Type != "snapshot" {
		t.Errorf("expected snapshot message, got %q", msg.Type)
	}
}

func TestSubscriberCloseUnsubscribes(t *testing.T) {
	t.Parallel()

	hub := NewHub(newSnapshotRepo(), zap.NewNop())
	sub := hub.Subscribe("dev@example.com")

	if got := hub.SubscriberCount("dev@example.com"); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	sub.Close()
	sub.Close() // idempotent

	if got := hub.SubscriberCount("dev@example.com"); got != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", got)
	}

	select {
	case <-sub.Done():
	default:
		t.Error("expected Done to be closed")
	}
}

func TestSubscriberBufferDropsOldest(t *testing.T) {
	t.Parallel()

	hub := NewHub(newSnapshotRepo(), zap.NewNop())
	sub := hub.Subscribe("dev@example.com")
	defer sub.Close()

	// Overfill the buffer, the newest payloads must survive
	for i := 0; i < sendBuffer+4; i++ {
		sub.push([]byte{byte(i)})
	}

	if got := len(sub.send); got != sendBuffer {
		t.Fatalf("expected full buffer of %d, got %d", sendBuffer, got)
	}

	last := <-sub.send
	for len(sub.send) > 0 {
		last = <-sub.send
	}
	if last[0] != byte(sendBuffer+3) {
		t.Errorf("expected newest payload to survive, got %d", last[0])
	}
}
