// Package dispatch provides the async task plumbing between the HTTP
// surface and the background worker: an AMQP-backed publisher/consumer
// pair plus an in-process dispatcher for tests and single-node setups.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/foothub/auth"
)

// Envelope is the wire format for queued tasks.
type Envelope struct {
	Task       string          `json:"task"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// AMQPDispatcher publishes task envelopes to a durable queue. It satisfies
// auth.TaskDispatcher; a worker on the other side consumes the queue and
// routes envelopes to handlers.
type AMQPDispatcher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  auth.Logger
}

// NewAMQPDispatcher dials the broker and declares the task queue.
func NewAMQPDispatcher(url, queue string, logger auth.Logger) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dispatch: failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dispatch: failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("dispatch: failed to declare queue %q: %w", queue, err)
	}

	return &AMQPDispatcher{
		conn:    conn,
		channel: channel,
		queue:   queue,
		logger:  logger,
	}, nil
}

// Enqueue publishes a task envelope. Delivery to the worker is
// at-least-once; the broker redelivers unacknowledged messages.
func (d *AMQPDispatcher) Enqueue(ctx context.Context, task string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispatch: failed to marshal payload for %q: %w", task, err)
	}

	body, err := json.Marshal(Envelope{
		Task:       task,
		Payload:    raw,
		EnqueuedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("dispatch: failed to marshal envelope for %q: %w", task, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = d.channel.PublishWithContext(publishCtx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("dispatch: failed to publish task %q: %w", task, err)
	}

	if d.logger != nil {
		d.logger.Debug("task %s enqueued", task)
	}

	return nil
}

// Close releases the channel and connection.
func (d *AMQPDispatcher) Close() error {
	if d.channel != nil {
		d.channel.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

var _ auth.TaskDispatcher = (*AMQPDispatcher)(nil)
