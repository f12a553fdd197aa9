package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchangeName is the fanout exchange carrying task change events
	DefaultExchangeName = "task_events"
)

// RabbitMQBus implements Publisher and Consumer over a RabbitMQ fanout
// exchange. Publishers write to the exchange; each consumer binds its own
// exclusive queue so every server instance observes every event.
type RabbitMQBus struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
}

// NewRabbitMQBus connects to RabbitMQ and declares the task events exchange
func NewRabbitMQBus(amqpURL string) (*RabbitMQBus, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	bus := &RabbitMQBus{
		conn:         conn,
		channel:      ch,
		exchangeName: DefaultExchangeName,
	}

	if err := bus.setup(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to setup exchange: %w", err)
	}

	return bus, nil
}

func (b *RabbitMQBus) setup() error {
	err := b.channel.ExchangeDeclare(
		b.exchangeName,
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

// Publish sends an event to the exchange
func (b *RabbitMQBus) Publish(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = b.channel.PublishWithContext(ctx,
		b.exchangeName,
		"",    // routing key ignored by fanout
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Transient,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Consume binds an exclusive queue to the exchange and delivers decoded
// events until the context is cancelled.
func (b *RabbitMQBus) Consume(ctx context.Context) (<-chan *Event, <-chan error, error) {
	// Exclusive auto-delete queue: feed state is per-instance and
	// rebuilt from the database on subscribe, so nothing needs to survive
	// a restart.
	q, err := b.channel.QueueDeclare(
		"",    // server-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to declare consumer queue: %w", err)
	}

	if err := b.channel.QueueBind(q.Name, "", b.exchangeName, false, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to bind consumer queue: %w", err)
	}

	deliveries, err := b.channel.Consume(
		q.Name,
		"",    // consumer tag
		true,  // auto-ack: a lost refresh is repaired by the next event
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	eventCh := make(chan *Event)
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					errCh <- fmt.Errorf("delivery channel closed")
					return
				}
				var event Event
				if err := json.Unmarshal(d.Body, &event); err != nil {
					// Malformed event: skip, the feed self-heals on
					// the next committed write
					continue
				}
				select {
				case eventCh <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return eventCh, errCh, nil
}

// Close closes the channel and connection
func (b *RabbitMQBus) Close() error {
	if err := b.channel.Close(); err != nil {
		if closeErr := b.conn.Close(); closeErr != nil {
			_ = closeErr
		}
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// HealthCheck verifies the connection is open
func (b *RabbitMQBus) HealthCheck(ctx context.Context) error {
	if b.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

var (
	_ Publisher = (*RabbitMQBus)(nil)
	_ Consumer  = (*RabbitMQBus)(nil)
)
