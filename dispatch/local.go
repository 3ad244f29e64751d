package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/foothub/auth"
)

// Local runs task handlers in-process on a goroutine per task. It keeps the
// fire-and-forget contract of the AMQP dispatcher without a broker, which is
// what tests and single-node deployments want.
type Local struct {
	mu       sync.RWMutex
	handlers map[string]TaskFunc
	logger   auth.Logger
	wg       sync.WaitGroup
}

func NewLocal(logger auth.Logger) *Local {
	return &Local{
		handlers: map[string]TaskFunc{},
		logger:   logger,
	}
}

// Handle registers a handler for a task name.
func (l *Local) Handle(task string, fn TaskFunc) *Local {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[task] = fn
	return l
}

// Enqueue schedules the task on its own goroutine. The payload is run
// through JSON the same way the broker path would, so handlers see
// identical input either way.
func (l *Local) Enqueue(ctx context.Context, task string, payload any) error {
	l.mu.RLock()
	fn, ok := l.handlers[task]
	l.mu.RUnlock()

	if !ok {
		return fmt.Errorf("dispatch: no handler registered for task %q", task)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispatch: failed to marshal payload for %q: %w", task, err)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := fn(context.WithoutCancel(ctx), raw); err != nil && l.logger != nil {
			l.logger.Error("task %s failed: %v", task, err)
		}
	}()

	return nil
}

// Wait blocks until every enqueued task has finished.
func (l *Local) Wait() {
	l.wg.Wait()
}

var _ auth.TaskDispatcher = (*Local)(nil)
