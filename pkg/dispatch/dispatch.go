// Package dispatch provides the single logical execution context that a
// component tree runs on.
//
// All lifecycle hooks, render scheduling, and render callbacks execute on
// one Dispatcher. Work submitted from other goroutines is marshalled onto
// the dispatcher's loop in FIFO order, so component state never needs
// locking.
package dispatch

import (
	stderrors "errors"
	"sync"
	"time"

	"github.com/go-veld/veld/pkg/errors"
	"github.com/go-veld/veld/pkg/task"
)

// ErrClosed is returned (via a faulted task) when work is submitted to a
// dispatcher that has been closed.
var ErrClosed = stderrors.New("dispatch: dispatcher is closed")

// Dispatcher runs submitted callbacks sequentially on a dedicated goroutine.
//
// The queue is unbounded, so Invoke never blocks and is safe to call from
// inside dispatched work.
type Dispatcher struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

// New creates a dispatcher and starts its loop.
func New() *Dispatcher {
	d := &Dispatcher{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	for {
		d.mu.Lock()
		for len(d.queue) == 0 {
			if d.closed {
				d.mu.Unlock()
				close(d.stopped)
				return
			}
			d.mu.Unlock()
			<-d.wake
			d.mu.Lock()
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}

func (d *Dispatcher) enqueue(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Invoke schedules fn on the dispatcher and returns a task that settles
// when fn has run. A panic inside fn is reported to the global error
// handler and faults the returned task with a *errors.PanicError.
func (d *Dispatcher) Invoke(fn func()) *task.Task {
	t := task.New()
	if fn == nil {
		t.Complete()
		return t
	}
	ok := d.enqueue(func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr := &errors.PanicError{
					Op:         "dispatch.Invoke",
					Value:      r,
					StackTrace: errors.CaptureStack(),
					Timestamp:  time.Now(),
				}
				errors.ReportPanic(panicErr)
				t.Fail(panicErr)
			}
		}()
		fn()
		t.Complete()
	})
	if !ok {
		t.Fail(ErrClosed)
	}
	return t
}

// InvokeTask schedules fn on the dispatcher and returns a task that settles
// when the task returned by fn settles. A nil inner task counts as already
// completed.
func (d *Dispatcher) InvokeTask(fn func() *task.Task) *task.Task {
	t := task.New()
	if fn == nil {
		t.Complete()
		return t
	}
	ok := d.enqueue(func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr := &errors.PanicError{
					Op:         "dispatch.InvokeTask",
					Value:      r,
					StackTrace: errors.CaptureStack(),
					Timestamp:  time.Now(),
				}
				errors.ReportPanic(panicErr)
				t.Fail(panicErr)
			}
		}()
		inner := fn()
		if inner == nil {
			t.Complete()
			return
		}
		go func() {
			status, err := inner.Wait()
			switch status {
			case task.StatusCancelled:
				t.Cancel()
			case task.StatusFaulted:
				t.Fail(err)
			default:
				t.Complete()
			}
		}()
	})
	if !ok {
		t.Fail(ErrClosed)
	}
	return t
}

// Close stops the dispatcher after draining already queued work.
// It blocks until the loop has exited. Work submitted after Close fails
// with ErrClosed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.stopped
}
