package component

import "github.com/go-veld/veld/pkg/task"

// RenderHandle is the component's capability to reach its renderer.
// It is a small value type created by the renderer and bound to a single
// component via Attach. The zero handle is unattached.
type RenderHandle struct {
	renderer    Renderer
	componentID string
}

// NewRenderHandle creates a handle that routes to r on behalf of the
// component identified by componentID.
func NewRenderHandle(r Renderer, componentID string) RenderHandle {
	return RenderHandle{renderer: r, componentID: componentID}
}

// Initialized reports whether the handle has been assigned a renderer.
func (h RenderHandle) Initialized() bool {
	return h.renderer != nil
}

// ComponentID returns the renderer-assigned identity of the component.
func (h RenderHandle) ComponentID() string {
	return h.componentID
}

// Render schedules fragment with the renderer.
// It panics with ErrNotAttached on a zero handle; RequestRender turns that
// panic into a rolled-back scheduling attempt.
func (h RenderHandle) Render(fragment RenderFragment) {
	if h.renderer == nil {
		panic(ErrNotAttached)
	}
	h.renderer.EnqueueRender(h.componentID, fragment)
}

// HotReloadInProgress reports whether a metadata-triggered refresh is
// underway. A zero handle reports false.
func (h RenderHandle) HotReloadInProgress() bool {
	if h.renderer == nil {
		return false
	}
	return h.renderer.HotReloadInProgress()
}

// Invoke marshals fn onto the renderer's dispatcher.
// A zero handle returns a task faulted with ErrNotAttached.
func (h RenderHandle) Invoke(fn func()) *task.Task {
	if h.renderer == nil {
		return task.Faulted(ErrNotAttached)
	}
	return h.renderer.Invoke(fn)
}

// DispatchFailure delivers fault to the renderer's failure boundary on the
// renderer's dispatcher. A zero handle returns a task faulted with
// ErrNotAttached.
func (h RenderHandle) DispatchFailure(fault error) *task.Task {
	if h.renderer == nil {
		return task.Faulted(ErrNotAttached)
	}
	r := h.renderer
	return r.Invoke(func() {
		r.HandleFailure(fault)
	})
}
