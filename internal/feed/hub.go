package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/taskpanel/taskpanel/internal/database"
	"github.com/taskpanel/taskpanel/internal/events"
	"github.com/taskpanel/taskpanel/internal/models"
	"github.com/taskpanel/taskpanel/internal/notify"
	"go.uber.org/zap"
)

// Message is the envelope pushed to feed subscribers. A snapshot message
// carries the owner's full task set, newest first; a notice message carries
// a transient notification.
type Message struct {
	Type   string         `json:"type"` // "snapshot" or "notice"
	Tasks  []*models.Task `json:"tasks"`
	Notice *notify.Notice `json:"notice,omitempty"`
	SentAt time.Time      `json:"sent_at"`
}

// Hub fans task snapshots out to feed subscribers. Each committed write to
// an owner's collection re-delivers the full owned set to every open
// subscription for that owner. The hub never holds task state itself; every
// snapshot is read fresh from the repository.
type Hub struct {
	tasks database.TaskRepositoryInterface
	log   *zap.Logger

	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]struct{} // keyed by owner
}

// NewHub creates a feed hub reading snapshots from the given repository
func NewHub(tasks database.TaskRepositoryInterface, log *zap.Logger) *Hub {
	return &Hub{
		tasks:       tasks,
		log:         log,
		subscribers: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new subscription for the owner. The returned
// subscriber's Close is its single teardown function; callers must invoke
// it when the subscription scope ends.
func (h *Hub) Subscribe(owner string) *Subscriber {
	sub := newSubscriber(h, owner)

	h.mu.Lock()
	set, ok := h.subscribers[owner]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subscribers[owner] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("feed_subscriber_added", zap.String("owner", owner))
	return sub
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subscribers[sub.owner]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subscribers, sub.owner)
		}
	}
	h.mu.Unlock()

	h.log.Debug("feed_subscriber_removed", zap.String("owner", sub.owner))
}

// SubscriberCount reports how many subscriptions an owner has open
func (h *Hub) SubscriberCount(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[owner])
}

// Refresh re-reads the owner's full task set and pushes a snapshot to every
// open subscription for that owner. No-op when the owner has none.
func (h *Hub) Refresh(ctx context.Context, owner string) error {
	h.mu.RLock()
	count := len(h.subscribers[owner])
	h.mu.RUnlock()
	if count == 0 {
		return nil
	}

	tasks, err := h.tasks.GetByOwner(ctx, owner, 0)
	if err != nil {
		return fmt.Errorf("failed to read snapshot for feed: %w", err)
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	return h.broadcast(owner, &Message{
		Type:   "snapshot",
		Tasks:  tasks,
		SentAt: time.Now(),
	})
}

// SendSnapshot delivers the current snapshot to a single subscriber,
// used for the initial delivery right after subscribing.
func (h *Hub) SendSnapshot(ctx context.Context, sub *Subscriber) error {
	tasks, err := h.tasks.GetByOwner(ctx, sub.owner, 0)
	if err != nil {
		return fmt.Errorf("failed to read snapshot for feed: %w", err)
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	payload, err := json.Marshal(&Message{
		Type:   "snapshot",
		Tasks:  tasks,
		SentAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	sub.push(payload)
	return nil
}

// Notify pushes a transient notice to every open subscription for the owner
func (h *Hub) Notify(owner string, notice *notify.Notice) {
	if err := h.broadcast(owner, &Message{
		Type:   "notice",
		Notice: notice,
		SentAt: time.Now(),
	}); err != nil {
		h.log.Warn("failed_to_broadcast_notice",
			zap.String("owner", owner),
			zap.Error(err),
		)
	}
}

func (h *Hub) broadcast(owner string, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal feed message: %w", err)
	}

	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers[owner]))
	for sub := range h.subscribers[owner] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.push(payload)
	}
	return nil
}

// HandleEvent reacts to one bus event: due-soon reminders become notices,
// every other change refreshes the owner's snapshot.
func (h *Hub) HandleEvent(ctx context.Context, event *events.Event) {
	switch event.Type {
	case events.TypeTaskDueSoon:
		message := fmt.Sprintf("Task due soon: %s", event.Description)
		if event.DueDate != "" {
			message = fmt.Sprintf("Task due %s: %s", event.DueDate, event.Description)
		}
		h.Notify(event.Owner, notify.Warning(message))
	default:
		if err := h.Refresh(ctx, event.Owner); err != nil {
			h.log.Warn("feed_refresh_failed",
				zap.String("owner", event.Owner),
				zap.String("event_type", string(event.Type)),
				zap.Error(err),
			)
		}
	}
}

// Run consumes the event bus until the context is cancelled, dispatching
// each event to HandleEvent. Returns the terminal consumer error, if any.
func (h *Hub) Run(ctx context.Context, consumer events.Consumer) error {
	eventCh, errCh, err := consumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start feed consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return fmt.Errorf("feed consumer failed: %w", err)
			}
		case event, ok := <-eventCh:
			if !ok {
				return nil
			}
			h.HandleEvent(ctx, event)
		}
	}
}
