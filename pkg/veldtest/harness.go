package veldtest

import (
	"sync"
	"testing"
	"time"

	"github.com/go-veld/veld/pkg/component"
	"github.com/go-veld/veld/pkg/errors"
	"github.com/go-veld/veld/pkg/render"
	"github.com/go-veld/veld/pkg/rendertree"
	"github.com/go-veld/veld/pkg/task"
)

// DefaultTimeout bounds every blocking harness operation.
const DefaultTimeout = 2 * time.Second

// Frame is one recorded render.
type Frame struct {
	ComponentID string
	Tree        *rendertree.Tree
}

// Harness drives components through a real renderer while recording
// frames and boundary failures for assertions.
type Harness struct {
	t        *testing.T
	renderer *render.Renderer

	mu       sync.Mutex
	frames   []Frame
	failures []error
	signal   chan struct{}
}

// New creates a harness bound to t. The renderer is closed and the global
// error handler restored via t.Cleanup.
func New(t *testing.T) *Harness {
	t.Helper()
	h := &Harness{
		t:        t,
		renderer: render.New(),
		signal:   make(chan struct{}, 128),
	}
	h.renderer.OnFrame = func(componentID string, tree *rendertree.Tree) {
		h.mu.Lock()
		h.frames = append(h.frames, Frame{ComponentID: componentID, Tree: tree})
		h.mu.Unlock()
		h.notify()
	}
	h.renderer.OnFailure = func(err error) {
		h.mu.Lock()
		h.failures = append(h.failures, err)
		h.mu.Unlock()
		h.notify()
	}

	// Keep test output clean: boundary failures are recorded, not logged.
	errors.SetHandler(silentHandler{})
	t.Cleanup(func() { errors.SetHandler(nil) })
	t.Cleanup(h.renderer.Close)
	return h
}

func (h *Harness) notify() {
	select {
	case h.signal <- struct{}{}:
	default:
	}
}

// Renderer exposes the underlying renderer for direct access.
func (h *Harness) Renderer() *render.Renderer {
	return h.renderer
}

// Register attaches c and returns its component id, failing the test on
// error.
func (h *Harness) Register(c component.Component) string {
	h.t.Helper()
	id, err := h.renderer.Register(c)
	if err != nil {
		h.t.Fatalf("veldtest: Register() error = %v", err)
	}
	return id
}

// SetParameters assigns values and waits for the full lifecycle sequence,
// including asynchronous continuations, to settle.
func (h *Harness) SetParameters(id string, values map[string]any) (task.Status, error) {
	h.t.Helper()
	tk := h.renderer.SetParameters(id, values)
	select {
	case <-tk.Done():
	case <-time.After(DefaultTimeout):
		h.t.Fatalf("veldtest: SetParameters(%s) did not settle within %v", id, DefaultTimeout)
	}
	return tk.Status(), tk.Err()
}

// TriggerHotReload forces a metadata-style refresh of every component and
// waits for it to be scheduled.
func (h *Harness) TriggerHotReload() {
	h.t.Helper()
	h.waitTask(h.renderer.TriggerHotReload())
}

// Barrier waits until all work currently queued on the dispatcher has run.
func (h *Harness) Barrier() {
	h.t.Helper()
	h.waitTask(h.renderer.Dispatcher().Invoke(func() {}))
}

func (h *Harness) waitTask(tk *task.Task) {
	h.t.Helper()
	select {
	case <-tk.Done():
	case <-time.After(DefaultTimeout):
		h.t.Fatalf("veldtest: dispatcher work did not settle within %v", DefaultTimeout)
	}
}

// WaitFrames blocks until at least n frames have been recorded in total.
func (h *Harness) WaitFrames(n int) {
	h.t.Helper()
	deadline := time.After(DefaultTimeout)
	for {
		h.mu.Lock()
		have := len(h.frames)
		h.mu.Unlock()
		if have >= n {
			return
		}
		select {
		case <-h.signal:
		case <-deadline:
			h.t.Fatalf("veldtest: wanted %d frames, have %d after %v", n, have, DefaultTimeout)
		}
	}
}

// WaitFailures blocks until at least n failures have reached the boundary.
func (h *Harness) WaitFailures(n int) {
	h.t.Helper()
	deadline := time.After(DefaultTimeout)
	for {
		h.mu.Lock()
		have := len(h.failures)
		h.mu.Unlock()
		if have >= n {
			return
		}
		select {
		case <-h.signal:
		case <-deadline:
			h.t.Fatalf("veldtest: wanted %d failures, have %d after %v", n, have, DefaultTimeout)
		}
	}
}

// Frames returns all recorded frames in render order.
func (h *Harness) Frames() []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Frame(nil), h.frames...)
}

// LastTree returns the most recently rendered tree for the component, or
// nil if it has not rendered.
func (h *Harness) LastTree(id string) *rendertree.Tree {
	return h.renderer.Tree(id)
}

// Failures returns every fault recorded at the failure boundary.
func (h *Harness) Failures() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.failures...)
}

type silentHandler struct{}

func (silentHandler) HandleError(err *errors.LifecycleError) {}
func (silentHandler) HandlePanic(err *errors.PanicError)     {}
