package component

import (
	"time"

	"github.com/go-veld/veld/pkg/errors"
	"github.com/go-veld/veld/pkg/task"
)

// SetParameters applies view and drives the component lifecycle. The very
// first call runs the init sequence (OnInit, OnInitAsync, then the
// parameters-set hooks); every later call runs only the parameters-set
// hooks. The returned task settles after the chosen sequence, including
// any asynchronous continuation, has fully completed.
//
// A hook task that settles as cancelled is swallowed: the sequence
// continues (init) or finishes (update) without error and without an
// extra render. A fault settles the returned task as faulted and skips
// any remaining render. A panic in a hook's synchronous portion faults
// the returned task with a *errors.PanicError.
//
// Must be called on the renderer's dispatcher. Overlapping calls are
// permitted: a call made while a previous call's continuation is still
// suspended starts its own sequence immediately, continuations interleave
// on the dispatcher in settlement order, and renders stay coalesced by
// the pending-render flag. Each returned task settles independently.
func (c *ComponentBase) SetParameters(view ParameterView) (result *task.Task) {
	if c.self == nil {
		return task.Faulted(ErrNotAttached)
	}
	defer func() {
		if r := recover(); r != nil {
			result = task.Faulted(recoveredPanic("component.SetParameters", r))
		}
	}()

	c.params = view
	if receiver, ok := c.self.(ParameterReceiver); ok {
		if err := receiver.ApplyParameters(view); err != nil {
			return task.Faulted(err)
		}
	}

	if !c.initialized {
		c.initialized = true
		return c.runInitSequence()
	}
	return c.runUpdateSequence()
}

// runInitSequence executes OnInit and OnInitAsync, then hands over to the
// update sequence. When OnInitAsync has real pending work, a render is
// scheduled first so the output reflects the synchronous portion of init,
// and the update sequence runs only after the pending work settles.
func (c *ComponentBase) runInitSequence() *task.Task {
	c.self.OnInit()
	pending := c.self.OnInitAsync()
	if pending == nil || pending.CompletedOrCancelled() {
		return c.runUpdateSequence()
	}

	c.RequestRender()
	result := task.New()
	go func() {
		status, err := pending.Wait()
		c.resumeOnDispatcher(result, func() {
			if status == task.StatusFaulted {
				result.Fail(err)
				return
			}
			// Cancellation is benign: continue with the update sequence.
			update := c.runUpdateSequence()
			if update.Settled() {
				settleFrom(result, update)
				return
			}
			go pipe(update, result)
		})
	}()
	return result
}

// runUpdateSequence executes the parameters-set hooks and schedules the
// renders around them. A render is always scheduled for the synchronous
// portion; a second render follows only when OnParametersSetAsync had real
// pending work that then completed successfully.
func (c *ComponentBase) runUpdateSequence() *task.Task {
	c.self.OnParametersSet()
	pending := c.self.OnParametersSetAsync()
	alreadyDone := pending == nil || pending.CompletedOrCancelled()

	c.RequestRender()
	if alreadyDone {
		// The render above is sufficient; no second render-and-suspend
		// cycle for a hook that did no real asynchronous work.
		return task.Completed()
	}

	result := task.New()
	go func() {
		status, err := pending.Wait()
		c.resumeOnDispatcher(result, func() {
			switch status {
			case task.StatusCancelled:
				result.Complete()
			case task.StatusFaulted:
				result.Fail(err)
			default:
				c.RequestRender()
				result.Complete()
			}
		})
	}()
	return result
}

// resumeOnDispatcher runs a suspended continuation back on the renderer's
// dispatcher. If the continuation cannot run, or panics, the sequence
// task is faulted so callers are never left waiting.
func (c *ComponentBase) resumeOnDispatcher(result *task.Task, cont func()) {
	inv := c.handle.Invoke(cont)
	if status, err := inv.Wait(); status == task.StatusFaulted {
		result.Fail(err)
	}
}

// settleFrom transfers an already settled task's outcome onto result.
func settleFrom(result, settled *task.Task) {
	switch settled.Status() {
	case task.StatusCancelled:
		result.Cancel()
	case task.StatusFaulted:
		result.Fail(settled.Err())
	default:
		result.Complete()
	}
}

func recoveredPanic(op string, value any) *errors.PanicError {
	return &errors.PanicError{
		Op:         op,
		Value:      value,
		StackTrace: errors.CaptureStack(),
		Timestamp:  time.Now(),
	}
}
