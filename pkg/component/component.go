package component

import (
	stderrors "errors"

	"github.com/go-veld/veld/pkg/errors"
	"github.com/go-veld/veld/pkg/rendertree"
	"github.com/go-veld/veld/pkg/task"
)

// ErrNotAttached reports use of a component whose render handle has not
// been bound yet.
var ErrNotAttached = stderrors.New("component: render handle has not been attached")

// RenderFragment writes one render's output into the tree builder.
type RenderFragment func(b *rendertree.Builder)

// Renderer is the narrow surface the lifecycle core needs from the
// external renderer that owns the component.
type Renderer interface {
	// EnqueueRender schedules fragment to run against the current
	// output-tree state. Invocation timing is renderer-controlled.
	EnqueueRender(componentID string, fragment RenderFragment)
	// Invoke marshals fn onto the renderer's dispatcher. The returned
	// task settles once fn has run, or faults if fn could not run.
	Invoke(fn func()) *task.Task
	// HotReloadInProgress reports whether a metadata-triggered refresh
	// is underway, which bypasses the ShouldRender veto.
	HotReloadInProgress() bool
	// HandleFailure receives faults that reached the renderer's
	// failure boundary.
	HandleFailure(err error)
}

// Component is the contract between a component and its renderer.
// It is satisfied by embedding ComponentBase and overriding hooks.
type Component interface {
	// Build writes the component's output-tree description.
	Build(b *rendertree.Builder)
	// OnInit runs once, before any asynchronous initialization.
	OnInit()
	// OnInitAsync runs once after OnInit. Return nil (or an already
	// settled task) when there is no pending asynchronous work.
	OnInitAsync() *task.Task
	// OnParametersSet runs on every parameter assignment.
	OnParametersSet()
	// OnParametersSetAsync runs after OnParametersSet. Return nil (or
	// an already settled task) when there is no pending work.
	OnParametersSetAsync() *task.Task
	// ShouldRender may veto renders after the first one.
	ShouldRender() bool
	// SetParameters applies a parameter view and drives the lifecycle.
	// Provided by the embedded ComponentBase.
	SetParameters(view ParameterView) *task.Task

	componentBase
}

// componentBase is satisfied by any struct that embeds ComponentBase,
// giving the framework access to the shared lifecycle state.
type componentBase interface {
	base() *ComponentBase
}

// ComponentBase carries the lifecycle state machine shared by all
// components. Embed it in your component struct; the zero value is ready
// to use once Attach binds it to a renderer.
//
// All fields are confined to the renderer's dispatcher, so no locking is
// needed.
type ComponentBase struct {
	self           Component
	handle         RenderHandle
	params         ParameterView
	renderFragment RenderFragment
	initialized    bool
	everRendered   bool
	renderPending  bool
}

func (c *ComponentBase) base() *ComponentBase { return c }

// OnInit is a no-op default implementation.
func (c *ComponentBase) OnInit() {}

// OnInitAsync is a default implementation with no pending work.
func (c *ComponentBase) OnInitAsync() *task.Task { return nil }

// OnParametersSet is a no-op default implementation.
func (c *ComponentBase) OnParametersSet() {}

// OnParametersSetAsync is a default implementation with no pending work.
func (c *ComponentBase) OnParametersSetAsync() *task.Task { return nil }

// ShouldRender allows every render by default.
func (c *ComponentBase) ShouldRender() bool { return true }

// Build is a no-op default implementation.
// Override this method to produce your output tree.
func (c *ComponentBase) Build(b *rendertree.Builder) {}

// Handle returns the bound render handle. The zero handle is returned
// before Attach.
func (c *ComponentBase) Handle() RenderHandle {
	return c.handle
}

// Parameters returns the most recently assigned parameter view.
func (c *ComponentBase) Parameters() ParameterView {
	return c.params
}

// Attach binds c to its render handle. It must be called exactly once,
// before the first parameter assignment; a second call fails with
// *errors.AlreadyAttachedError and leaves the first handle bound.
func Attach(c Component, handle RenderHandle) error {
	b := c.base()
	if b.handle.Initialized() {
		return &errors.AlreadyAttachedError{ComponentID: b.handle.ComponentID()}
	}
	b.self = c
	b.handle = handle
	b.renderFragment = func(tb *rendertree.Builder) {
		b.renderPending = false
		b.everRendered = true
		b.self.Build(tb)
	}
	return nil
}

// RequestRender schedules a render of the component.
//
// Repeated requests issued before the render callback executes coalesce
// into a single scheduled render. After the first render, a request is
// dropped when ShouldRender vetoes it, unless a metadata-triggered refresh
// is in progress. Must be called on the renderer's dispatcher.
func (c *ComponentBase) RequestRender() {
	if c.renderPending {
		return
	}
	if c.everRendered && !c.self.ShouldRender() && !c.handle.HotReloadInProgress() {
		return
	}
	c.renderPending = true
	defer func() {
		// A failed scheduling attempt must not block future requests.
		if r := recover(); r != nil {
			c.renderPending = false
			panic(r)
		}
	}()
	c.handle.Render(c.renderFragment)
}

// Dispatch marshals fn onto the renderer's dispatcher and returns its
// completion signal. Use it to move state changes made on other
// goroutines back onto the rendering context before calling RequestRender.
func (c *ComponentBase) Dispatch(fn func()) *task.Task {
	if !c.handle.Initialized() {
		return task.Faulted(ErrNotAttached)
	}
	return c.handle.Invoke(fn)
}

// DispatchTask is Dispatch for work that is itself asynchronous: the
// returned task settles when the task produced by fn settles.
func (c *ComponentBase) DispatchTask(fn func() *task.Task) *task.Task {
	if !c.handle.Initialized() {
		return task.Faulted(ErrNotAttached)
	}
	if fn == nil {
		return c.handle.Invoke(nil)
	}
	result := task.New()
	inv := c.handle.Invoke(func() {
		inner := fn()
		if inner == nil {
			result.Complete()
			return
		}
		go pipe(inner, result)
	})
	go func() {
		if status, err := inv.Wait(); status == task.StatusFaulted {
			result.Fail(err)
		}
	}()
	return result
}

// DispatchFailure forwards an out-of-band fault (one not raised inside a
// lifecycle hook) to the renderer's failure boundary. The returned task
// settles once the fault has been delivered.
func (c *ComponentBase) DispatchFailure(fault error) *task.Task {
	return c.handle.DispatchFailure(fault)
}

// pipe settles outer from inner once inner settles.
func pipe(inner, outer *task.Task) {
	status, err := inner.Wait()
	switch status {
	case task.StatusCancelled:
		outer.Cancel()
	case task.StatusFaulted:
		outer.Fail(err)
	default:
		outer.Complete()
	}
}
