package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/foothub/auth"
)

// TaskFunc handles one decoded task payload.
type TaskFunc func(ctx context.Context, payload json.RawMessage) error

// Worker consumes the task queue and routes envelopes to registered
// handlers. Unknown tasks are acked and dropped; handler failures are
// nacked back to the broker for redelivery.
type Worker struct {
	channel  *amqp.Channel
	queue    string
	handlers map[string]TaskFunc
	logger   auth.Logger
}

// NewWorker attaches a consumer to the dispatcher's queue.
func NewWorker(d *AMQPDispatcher, logger auth.Logger) *Worker {
	return &Worker{
		channel:  d.channel,
		queue:    d.queue,
		handlers: map[string]TaskFunc{},
		logger:   logger,
	}
}

// Handle registers a handler for a task name.
func (w *Worker) Handle(task string, fn TaskFunc) *Worker {
	w.handlers[task] = fn
	return w
}

// HandleConfirmationEmail wires the confirmation email command.
func (w *Worker) HandleConfirmationEmail(h *auth.SendConfirmationEmailHandler) *Worker {
	return w.Handle(auth.TaskSendConfirmationEmail, ConfirmationEmailTaskFunc(h))
}

// HandleBroadcast wires the registration broadcast command.
func (w *Worker) HandleBroadcast(h *auth.BroadcastRegistrationHandler) *Worker {
	return w.Handle(auth.TaskBroadcastRegistration, BroadcastTaskFunc(h))
}

// ConfirmationEmailTaskFunc decodes the confirmation email payload and runs
// the handler. Shared between the AMQP worker and the local dispatcher.
func ConfirmationEmailTaskFunc(h *auth.SendConfirmationEmailHandler) TaskFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var task auth.ConfirmationEmailTask
		if err := json.Unmarshal(payload, &task); err != nil {
			return fmt.Errorf("dispatch: bad confirmation email payload: %w", err)
		}
		return h.Execute(ctx, task)
	}
}

// BroadcastTaskFunc decodes the broadcast payload and runs the handler.
func BroadcastTaskFunc(h *auth.BroadcastRegistrationHandler) TaskFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var task auth.BroadcastRegistrationTask
		if err := json.Unmarshal(payload, &task); err != nil {
			return fmt.Errorf("dispatch: bad broadcast payload: %w", err)
		}
		return h.Execute(ctx, task)
	}
}

// Run consumes the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.channel.ConsumeWithContext(ctx, w.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("dispatch: failed to start consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.process(ctx, delivery)
		}
	}
}

func (w *Worker) process(ctx context.Context, delivery amqp.Delivery) {
	var envelope Envelope
	if err := json.Unmarshal(delivery.Body, &envelope); err != nil {
		w.logger.Error("dropping undecodable envelope: %v", err)
		_ = delivery.Ack(false)
		return
	}

	fn, ok := w.handlers[envelope.Task]
	if !ok {
		w.logger.Error("dropping unknown task %q", envelope.Task)
		_ = delivery.Ack(false)
		return
	}

	if err := fn(ctx, envelope.Payload); err != nil {
		w.logger.Error("task %s failed, requeueing: %v", envelope.Task, err)
		_ = delivery.Nack(false, true)
		return
	}

	w.logger.Debug("task %s completed", envelope.Task)
	_ = delivery.Ack(false)
}
