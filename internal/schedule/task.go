// Package schedule runs periodic work with an explicit start/cancel lifecycle.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Task is a running periodic job. The zero value is not usable; use Every.
type Task struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Every calls fn on each tick of interval until the task is stopped or ctx
// ends. Ticks that fire while fn is still running are skipped, not queued.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	task := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(task.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.C:
				fn(taskCtx)
			}
		}
	}()

	return task
}

// Stop cancels the task and waits for an in-progress tick to return.
// It is safe on a nil task and safe to call more than once.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(t.cancel)
	<-t.done
}

// Slot holds at most one task; replacing it stops the previous one first.
type Slot struct {
	mu   sync.Mutex
	task *Task
}

// Replace stops the current task, if any, and installs next (which may be nil).
func (s *Slot) Replace(next *Task) {
	s.mu.Lock()
	previous := s.task
	s.task = next
	s.mu.Unlock()

	previous.Stop()
}

// Stop stops and clears the current task.
func (s *Slot) Stop() {
	s.Replace(nil)
}

// Active reports whether a task is installed.
func (s *Slot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task != nil
}
