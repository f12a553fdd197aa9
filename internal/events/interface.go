package events

import (
	"context"
)

// Publisher publishes task change events to the fanout bus
type Publisher interface {
	// Publish sends an event to every connected consumer
	Publish(ctx context.Context, event *Event) error

	// Close closes the bus connection
	Close() error

	// HealthCheck verifies the bus connection is healthy
	HealthCheck(ctx context.Context) error
}

// Consumer receives task change events from the fanout bus. Each consumer
// sees every event: server instances use this to refresh their local feed
// subscribers regardless of which instance handled the write.
type Consumer interface {
	// Consume returns a channel of events. The channel is closed when the
	// context is cancelled or the connection drops; the error channel
	// carries the terminal error, if any.
	Consume(ctx context.Context) (<-chan *Event, <-chan error, error)

	// Close closes the bus connection
	Close() error
}
