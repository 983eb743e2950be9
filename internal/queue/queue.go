// Package queue delivers pipeline tasks to their handlers with
// at-least-once semantics.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// ErrUnknownTaskKind is returned when no handler is registered for a task.
// Such tasks are dead-lettered without retry.
var ErrUnknownTaskKind = errors.New("unknown task kind")

// Queue accepts tasks for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, task models.Task) error
}

// Handler executes one task. A returned error makes the task eligible for
// redelivery, so handlers must be idempotent.
type Handler func(ctx context.Context, task models.Task) error

// Mux routes tasks to handlers by kind.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Handle registers h for kind, replacing any previous handler.
func (m *Mux) Handle(kind string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = h
}

// Dispatch runs the handler registered for the task's kind.
func (m *Mux) Dispatch(ctx context.Context, task models.Task) error {
	m.mu.RLock()
	h, ok := m.handlers[task.Kind]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTaskKind, task.Kind)
	}
	return h(ctx, task)
}

// safeHandle turns a handler panic into an error.
func safeHandle(ctx context.Context, h Handler, task models.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s (%s) panicked: %v", task.ID, task.Kind, r)
		}
	}()
	return h(ctx, task)
}

// retryable reports whether a failed task should be delivered again.
func retryable(err error, task models.Task, maxAttempts int) bool {
	return !errors.Is(err, ErrUnknownTaskKind) && task.Attempt < maxAttempts
}
