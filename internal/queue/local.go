package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kiranshivaraju/equiplens/internal/metrics"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue closed")

// Local runs each task in its own goroutine inside the process. Failed
// tasks are retried immediately up to maxAttempts. It backs the offline
// CLI and tests.
type Local struct {
	handler     Handler
	maxAttempts int
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
	dead   []models.Task
	wg     sync.WaitGroup
}

// NewLocal returns a Local queue delivering to handler.
func NewLocal(handler Handler, maxAttempts int, logger *slog.Logger) *Local {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{handler: handler, maxAttempts: maxAttempts, logger: logger}
}

// Enqueue starts the task. Cancellation of ctx does not stop it.
func (l *Local) Enqueue(ctx context.Context, task models.Task) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		l.run(context.WithoutCancel(ctx), task)
	}()
	return nil
}

func (l *Local) run(ctx context.Context, task models.Task) {
	for {
		err := safeHandle(ctx, l.handler, task)
		if err == nil {
			metrics.QueueTasks.WithLabelValues(task.Kind, "succeeded").Inc()
			return
		}
		if !retryable(err, task, l.maxAttempts) {
			l.logger.Error("task dead-lettered",
				"task_id", task.ID, "kind", task.Kind, "dataset_id", task.DatasetID,
				"attempt", task.Attempt, "error", err)
			metrics.QueueTasks.WithLabelValues(task.Kind, "dead_lettered").Inc()
			l.mu.Lock()
			l.dead = append(l.dead, task)
			l.mu.Unlock()
			return
		}
		l.logger.Warn("task failed, retrying",
			"task_id", task.ID, "kind", task.Kind, "attempt", task.Attempt, "error", err)
		metrics.QueueTasks.WithLabelValues(task.Kind, "retried").Inc()
		task.Attempt++
	}
}

// Wait blocks until every enqueued task, including tasks enqueued by
// running handlers, has finished.
func (l *Local) Wait() {
	l.wg.Wait()
}

// Close rejects further tasks and waits for running ones.
func (l *Local) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.wg.Wait()
}

// DeadLetters returns the tasks that exhausted their attempts.
func (l *Local) DeadLetters() []models.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Task(nil), l.dead...)
}

var _ Queue = (*Local)(nil)
