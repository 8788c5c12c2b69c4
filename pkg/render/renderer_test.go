package render

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-veld/veld/pkg/component"
	"github.com/go-veld/veld/pkg/errors"
	"github.com/go-veld/veld/pkg/rendertree"
	"github.com/go-veld/veld/pkg/task"
)

// label renders its "text" parameter into a single element.
type label struct {
	component.ComponentBase
	text string
}

func (l *label) ApplyParameters(view component.ParameterView) error {
	l.text, _ = component.Value[string](view, "text")
	return nil
}

func (l *label) Build(b *rendertree.Builder) {
	b.OpenElement("label")
	b.AddText(l.text)
	b.CloseElement()
}

// frozen vetoes every render after the first.
type frozen struct {
	label
}

func (f *frozen) ShouldRender() bool { return false }

// brokenBuild produces an unbalanced tree.
type brokenBuild struct {
	component.ComponentBase
}

func (c *brokenBuild) Build(b *rendertree.Builder) {
	b.OpenElement("never-closed")
}

// panickyBuild panics while rendering.
type panickyBuild struct {
	component.ComponentBase
}

func (c *panickyBuild) Build(b *rendertree.Builder) {
	panic("build blew up")
}

type frameRecord struct {
	componentID string
	tree        *rendertree.Tree
}

type harness struct {
	renderer *Renderer
	frames   chan frameRecord
	failures chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	errors.SetHandler(&quietHandler{})
	t.Cleanup(func() { errors.SetHandler(nil) })

	h := &harness{
		renderer: New(),
		frames:   make(chan frameRecord, 16),
		failures: make(chan error, 16),
	}
	h.renderer.OnFrame = func(componentID string, tree *rendertree.Tree) {
		h.frames <- frameRecord{componentID: componentID, tree: tree}
	}
	h.renderer.OnFailure = func(err error) {
		h.failures <- err
	}
	t.Cleanup(h.renderer.Close)
	return h
}

func (h *harness) waitFrame(t *testing.T) frameRecord {
	t.Helper()
	select {
	case frame := <-h.frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame produced in time")
		return frameRecord{}
	}
}

func (h *harness) waitFailure(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.failures:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("no failure reported in time")
		return nil
	}
}

func (h *harness) expectNoFrame(t *testing.T) {
	t.Helper()
	// Barrier: everything queued on the dispatcher has run.
	h.renderer.Dispatcher().Invoke(func() {}).Wait()
	select {
	case frame := <-h.frames:
		t.Fatalf("unexpected frame for %s", frame.componentID)
	default:
	}
}

func waitSettled(t *testing.T, tk *task.Task) (task.Status, error) {
	t.Helper()
	select {
	case <-tk.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not settle in time")
	}
	return tk.Status(), tk.Err()
}

type quietHandler struct {
	mu     sync.Mutex
	errors []*errors.LifecycleError
}

func (h *quietHandler) HandleError(err *errors.LifecycleError) {
	h.mu.Lock()
	h.errors = append(h.errors, err)
	h.mu.Unlock()
}

func (h *quietHandler) HandlePanic(err *errors.PanicError) {}

func TestRegisterAndRender(t *testing.T) {
	h := newHarness(t)

	c := &label{}
	id, err := h.renderer.Register(c)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id == "" {
		t.Fatal("Register() returned empty id")
	}

	status, terr := waitSettled(t, h.renderer.SetParameters(id, map[string]any{"text": "hello"}))
	if status != task.StatusCompleted || terr != nil {
		t.Fatalf("SetParameters = %v, %v", status, terr)
	}

	frame := h.waitFrame(t)
	if frame.componentID != id {
		t.Errorf("frame componentID = %q, want %q", frame.componentID, id)
	}
	frames := frame.tree.Frames()
	if len(frames) != 3 || frames[1].Value != "hello" {
		t.Errorf("tree frames = %+v, want label around %q", frames, "hello")
	}

	if got := h.renderer.Tree(id); got == nil || got.Len() != 3 {
		t.Error("Tree() should return the latest rendered tree")
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	h := newHarness(t)

	c := &label{}
	if _, err := h.renderer.Register(c); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	_, err := h.renderer.Register(c)
	var attachErr *errors.AlreadyAttachedError
	if !stderrors.As(err, &attachErr) {
		t.Errorf("second Register() error = %v, want *errors.AlreadyAttachedError", err)
	}
}

func TestSetParametersUnknownComponent(t *testing.T) {
	h := newHarness(t)

	status, err := waitSettled(t, h.renderer.SetParameters("missing", nil))
	if status != task.StatusFaulted || err == nil {
		t.Errorf("SetParameters = %v, %v, want fault for unknown component", status, err)
	}
}

// faultyHook fails its parameters-set hook with a fixed error.
type faultyHook struct {
	component.ComponentBase
	fault error
}

func (c *faultyHook) OnParametersSetAsync() *task.Task {
	return task.Go(func() error { return c.fault })
}

func TestHookFaultReachesBoundary(t *testing.T) {
	h := newHarness(t)

	fault := fmt.Errorf("hook failed")
	c := &faultyHook{fault: fault}
	id, err := h.renderer.Register(c)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	status, terr := waitSettled(t, h.renderer.SetParameters(id, nil))
	if status != task.StatusFaulted || terr != fault {
		t.Fatalf("SetParameters = %v, %v, want faulted %v", status, terr, fault)
	}

	boundary := h.waitFailure(t)
	var lifecycleErr *errors.LifecycleError
	if !stderrors.As(boundary, &lifecycleErr) {
		t.Fatalf("boundary error = %T, want *errors.LifecycleError", boundary)
	}
	if lifecycleErr.Kind != errors.KindHook {
		t.Errorf("Kind = %v, want %v", lifecycleErr.Kind, errors.KindHook)
	}
	if lifecycleErr.ComponentID != id {
		t.Errorf("ComponentID = %q, want %q", lifecycleErr.ComponentID, id)
	}
	if !stderrors.Is(boundary, fault) {
		t.Error("boundary error should wrap the hook fault")
	}
}

func TestRenderCoalescing(t *testing.T) {
	h := newHarness(t)

	c := &label{}
	id, err := h.renderer.Register(c)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	waitSettled(t, h.renderer.SetParameters(id, map[string]any{"text": "v1"}))
	h.waitFrame(t)

	// Several requests in one dispatcher turn produce a single frame.
	waitSettled(t, h.renderer.Dispatcher().Invoke(func() {
		c.RequestRender()
		c.RequestRender()
		c.RequestRender()
	}))
	h.waitFrame(t)
	h.expectNoFrame(t)
}

func TestTriggerHotReloadBypassesVeto(t *testing.T) {
	h := newHarness(t)

	c := &frozen{}
	id, err := h.renderer.Register(c)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	waitSettled(t, h.renderer.SetParameters(id, map[string]any{"text": "v1"}))
	h.waitFrame(t) // first render always fires

	// Normal requests are vetoed now.
	waitSettled(t, h.renderer.Dispatcher().Invoke(func() { c.RequestRender() }))
	h.expectNoFrame(t)

	// A metadata-triggered refresh is not.
	waitSettled(t, h.renderer.TriggerHotReload())
	h.waitFrame(t)
}

func TestUnbalancedBuildIsRenderFault(t *testing.T) {
	h := newHarness(t)

	c := &brokenBuild{}
	id, err := h.renderer.Register(c)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	waitSettled(t, h.renderer.SetParameters(id, nil))

	boundary := h.waitFailure(t)
	var lifecycleErr *errors.LifecycleError
	if !stderrors.As(boundary, &lifecycleErr) {
		t.Fatalf("boundary error = %T, want *errors.LifecycleError", boundary)
	}
	if lifecycleErr.Kind != errors.KindRender {
		t.Errorf("Kind = %v, want %v", lifecycleErr.Kind, errors.KindRender)
	}
	if h.renderer.Tree(id) != nil {
		t.Error("no tree should be stored for a failed render")
	}
}

func TestBuildPanicIsRenderFault(t *testing.T) {
	h := newHarness(t)

	c := &panickyBuild{}
	id, err := h.renderer.Register(c)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	waitSettled(t, h.renderer.SetParameters(id, nil))

	boundary := h.waitFailure(t)
	var lifecycleErr *errors.LifecycleError
	if !stderrors.As(boundary, &lifecycleErr) {
		t.Fatalf("boundary error = %T, want *errors.LifecycleError", boundary)
	}
	if lifecycleErr.Kind != errors.KindRender {
		t.Errorf("Kind = %v, want %v", lifecycleErr.Kind, errors.KindRender)
	}
	// The renderer must survive and keep serving other components.
	l := &label{}
	lid, err := h.renderer.Register(l)
	if err != nil {
		t.Fatalf("Register() after panic error = %v", err)
	}
	waitSettled(t, h.renderer.SetParameters(lid, map[string]any{"text": "alive"}))
	frame := h.waitFrame(t)
	if frame.componentID != lid {
		t.Errorf("frame componentID = %q, want %q", frame.componentID, lid)
	}
}
