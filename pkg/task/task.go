// Package task provides the asynchronous completion signal used by the
// Veld component lifecycle.
//
// A Task settles exactly once into one of three terminal states: Completed,
// Cancelled, or Faulted. The lifecycle driver branches on the settled status
// directly instead of inspecting error identity, which keeps cancellation
// (a benign outcome) separate from real faults.
package task

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/go-veld/veld/pkg/errors"
)

// Status describes the settlement state of a Task.
type Status int

const (
	// StatusPending means the task has not settled yet.
	StatusPending Status = iota
	// StatusCompleted means the task finished successfully.
	StatusCompleted
	// StatusCancelled means the task was cancelled before it finished.
	StatusCancelled
	// StatusFaulted means the task failed with a non-cancellation error.
	StatusFaulted
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFaulted:
		return "faulted"
	default:
		return "pending"
	}
}

// Task is a single-settlement completion signal.
//
// The zero value is not usable; create tasks with New, Completed, Cancelled,
// Faulted, or Go. All methods are safe for concurrent use.
type Task struct {
	mu     sync.Mutex
	done   chan struct{}
	status Status
	err    error
}

// New returns a pending task.
func New() *Task {
	return &Task{done: make(chan struct{})}
}

// Completed returns a task that is already completed.
func Completed() *Task {
	t := New()
	t.Complete()
	return t
}

// Cancelled returns a task that is already cancelled.
func Cancelled() *Task {
	t := New()
	t.Cancel()
	return t
}

// Faulted returns a task that has already failed with err.
func Faulted(err error) *Task {
	t := New()
	t.Fail(err)
	return t
}

// Go runs fn on a new goroutine and returns a task that settles from its
// result: nil completes the task, context.Canceled cancels it, and any
// other error faults it. A panic inside fn faults the task with a
// *errors.PanicError.
func Go(fn func() error) *Task {
	t := New()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fail(&errors.PanicError{
					Op:         "task.Go",
					Value:      r,
					StackTrace: errors.CaptureStack(),
					Timestamp:  time.Now(),
				})
			}
		}()
		t.Fail(fn())
	}()
	return t
}

// Complete settles the task as completed. It reports whether this call
// settled the task; settling an already settled task is a no-op.
func (t *Task) Complete() bool {
	return t.settle(StatusCompleted, nil)
}

// Cancel settles the task as cancelled. It reports whether this call
// settled the task.
func (t *Task) Cancel() bool {
	return t.settle(StatusCancelled, nil)
}

// Fail settles the task from err: nil completes it, context.Canceled
// cancels it, anything else faults it. It reports whether this call
// settled the task.
func (t *Task) Fail(err error) bool {
	if err == nil {
		return t.settle(StatusCompleted, nil)
	}
	if stderrors.Is(err, context.Canceled) {
		return t.settle(StatusCancelled, nil)
	}
	return t.settle(StatusFaulted, err)
}

func (t *Task) settle(status Status, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending {
		return false
	}
	t.status = status
	t.err = err
	close(t.done)
	return true
}

// Done returns a channel that is closed when the task settles.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Status returns the current settlement state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err returns the fault, or nil unless the task settled as faulted.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Settled reports whether the task has reached any terminal state.
func (t *Task) Settled() bool {
	return t.Status() != StatusPending
}

// CompletedOrCancelled reports whether the task settled without a fault.
// A pending or faulted task reports false.
func (t *Task) CompletedOrCancelled() bool {
	s := t.Status()
	return s == StatusCompleted || s == StatusCancelled
}

// Wait blocks until the task settles and returns its status and fault.
func (t *Task) Wait() (Status, error) {
	<-t.done
	return t.Status(), t.Err()
}
