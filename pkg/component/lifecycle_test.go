package component

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/go-veld/veld/pkg/errors"
	"github.com/go-veld/veld/pkg/task"
)

func TestInitSequenceWithSuspendedAsyncHook(t *testing.T) {
	p, renderer, log := newProbe(t)
	pending := task.New()
	p.initAsyncFn = func() *task.Task { return pending }

	result := p.SetParameters(ParameterView{})

	// The synchronous portion of init is rendered before suspension.
	log.assert(t, "OnInit", "OnInitAsync", "render scheduled")
	if result.Settled() {
		t.Fatal("lifecycle task settled before the init hook finished")
	}

	// Drain the render queue, then resume.
	renderer.flush(t)
	pending.Complete()

	status, err := waitTask(t, result)
	if status != task.StatusCompleted || err != nil {
		t.Fatalf("SetParameters = %v, %v, want completed, nil", status, err)
	}
	log.assert(t,
		"OnInit",
		"OnInitAsync",
		"render scheduled",
		"OnParametersSet",
		"OnParametersSetAsync",
		"render scheduled",
	)
}

func TestInitSequenceWithSynchronousAsyncHook(t *testing.T) {
	for name, hook := range map[string]func() *task.Task{
		"nil task":       nil,
		"completed task": func() *task.Task { return task.Completed() },
	} {
		t.Run(name, func(t *testing.T) {
			p, _, log := newProbe(t)
			p.initAsyncFn = hook

			status, err := waitTask(t, p.SetParameters(ParameterView{}))
			if status != task.StatusCompleted || err != nil {
				t.Fatalf("SetParameters = %v, %v, want completed, nil", status, err)
			}
			// No intermediate render: only the single post-hooks render.
			log.assert(t,
				"OnInit",
				"OnInitAsync",
				"OnParametersSet",
				"OnParametersSetAsync",
				"render scheduled",
			)
		})
	}
}

func TestInitSequenceSwallowsCancellation(t *testing.T) {
	p, renderer, log := newProbe(t)
	pending := task.New()
	p.initAsyncFn = func() *task.Task { return pending }

	result := p.SetParameters(ParameterView{})
	renderer.flush(t)
	pending.Cancel()

	status, err := waitTask(t, result)
	if status != task.StatusCompleted || err != nil {
		t.Fatalf("SetParameters = %v, %v, want completed, nil", status, err)
	}
	// The update sequence still ran after the swallowed cancellation.
	log.assert(t,
		"OnInit",
		"OnInitAsync",
		"render scheduled",
		"OnParametersSet",
		"OnParametersSetAsync",
		"render scheduled",
	)
}

func TestInitSequencePropagatesAsyncFault(t *testing.T) {
	p, renderer, log := newProbe(t)
	pending := task.New()
	p.initAsyncFn = func() *task.Task { return pending }

	result := p.SetParameters(ParameterView{})
	renderer.flush(t)

	fault := fmt.Errorf("init load failed")
	pending.Fail(fault)

	status, err := waitTask(t, result)
	if status != task.StatusFaulted || err != fault {
		t.Fatalf("SetParameters = %v, %v, want faulted %v", status, err, fault)
	}
	// The parameters-set hooks were skipped.
	log.assert(t, "OnInit", "OnInitAsync", "render scheduled")
}

func TestInitSequenceAlreadyCancelledSkipsIntermediateRender(t *testing.T) {
	p, _, log := newProbe(t)
	p.initAsyncFn = func() *task.Task { return task.Cancelled() }

	status, err := waitTask(t, p.SetParameters(ParameterView{}))
	if status != task.StatusCompleted || err != nil {
		t.Fatalf("SetParameters = %v, %v, want completed, nil", status, err)
	}
	log.assert(t,
		"OnInit",
		"OnInitAsync",
		"OnParametersSet",
		"OnParametersSetAsync",
		"render scheduled",
	)
}

// initialize drives a probe through a plain init so later assertions see
// only update-sequence events.
func initialize(t *testing.T, p *probe, renderer *stubRenderer, log *eventLog) {
	t.Helper()
	status, err := waitTask(t, p.SetParameters(ParameterView{}))
	if status != task.StatusCompleted || err != nil {
		t.Fatalf("init SetParameters = %v, %v", status, err)
	}
	renderer.flush(t)
	log.mu.Lock()
	log.events = nil
	log.mu.Unlock()
}

func TestUpdateSequenceAlreadyDoneShortCircuit(t *testing.T) {
	p, renderer, log := newProbe(t)
	initialize(t, p, renderer, log)
	p.paramsAsyncFn = func() *task.Task { return task.Completed() }

	result := p.SetParameters(ParameterView{})
	// Resolves synchronously, with exactly one render and no suspension.
	if !result.Settled() {
		t.Fatal("already-done update should settle synchronously")
	}
	if status := result.Status(); status != task.StatusCompleted {
		t.Fatalf("status = %v, want completed", status)
	}
	log.assert(t, "OnParametersSet", "OnParametersSetAsync", "render scheduled")
}

func TestUpdateSequenceRendersAgainAfterAsyncWork(t *testing.T) {
	p, renderer, log := newProbe(t)
	initialize(t, p, renderer, log)
	pending := task.New()
	p.paramsAsyncFn = func() *task.Task { return pending }

	result := p.SetParameters(ParameterView{})
	log.assert(t, "OnParametersSet", "OnParametersSetAsync", "render scheduled")
	if result.Settled() {
		t.Fatal("update with pending work should not settle yet")
	}

	renderer.flush(t)
	pending.Complete()

	status, err := waitTask(t, result)
	if status != task.StatusCompleted || err != nil {
		t.Fatalf("SetParameters = %v, %v, want completed, nil", status, err)
	}
	log.assert(t,
		"OnParametersSet",
		"OnParametersSetAsync",
		"render scheduled",
		"render scheduled",
	)
}

func TestUpdateSequenceSwallowsCancellation(t *testing.T) {
	p, renderer, log := newProbe(t)
	initialize(t, p, renderer, log)
	pending := task.New()
	p.paramsAsyncFn = func() *task.Task { return pending }

	result := p.SetParameters(ParameterView{})
	renderer.flush(t)
	pending.Cancel()

	status, err := waitTask(t, result)
	if status != task.StatusCompleted || err != nil {
		t.Fatalf("SetParameters = %v, %v, want completed, nil", status, err)
	}
	// No second render after a cancelled hook task.
	log.assert(t, "OnParametersSet", "OnParametersSetAsync", "render scheduled")
}

func TestUpdateSequencePropagatesAsyncFault(t *testing.T) {
	p, renderer, log := newProbe(t)
	initialize(t, p, renderer, log)
	pending := task.New()
	p.paramsAsyncFn = func() *task.Task { return pending }

	result := p.SetParameters(ParameterView{})
	renderer.flush(t)

	fault := fmt.Errorf("refresh failed")
	pending.Fail(fault)

	status, err := waitTask(t, result)
	if status != task.StatusFaulted || err != fault {
		t.Fatalf("SetParameters = %v, %v, want faulted %v", status, err, fault)
	}
	// No second render after a faulted hook task.
	log.assert(t, "OnParametersSet", "OnParametersSetAsync", "render scheduled")
}

func TestUpdateSequenceAlreadyFaultedStillRendersOnce(t *testing.T) {
	p, renderer, log := newProbe(t)
	initialize(t, p, renderer, log)
	fault := fmt.Errorf("immediate failure")
	p.paramsAsyncFn = func() *task.Task { return task.Faulted(fault) }

	result := p.SetParameters(ParameterView{})
	status, err := waitTask(t, result)
	if status != task.StatusFaulted || err != fault {
		t.Fatalf("SetParameters = %v, %v, want faulted %v", status, err, fault)
	}
	// The render that covers the synchronous portion was still scheduled.
	log.assert(t, "OnParametersSet", "OnParametersSetAsync", "render scheduled")
}

func TestSetParametersBeforeAttachFails(t *testing.T) {
	p := &probe{log: &eventLog{}}

	status, err := p.SetParameters(ParameterView{}).Wait()
	if status != task.StatusFaulted || !stderrors.Is(err, ErrNotAttached) {
		t.Errorf("SetParameters = %v, %v, want faulted ErrNotAttached", status, err)
	}
}

func TestSetParametersRecoversHookPanic(t *testing.T) {
	p, _, _ := newProbe(t)
	p.initAsyncFn = func() *task.Task { panic("broken hook") }

	status, err := waitTask(t, p.SetParameters(ParameterView{}))
	if status != task.StatusFaulted {
		t.Fatalf("status = %v, want faulted", status)
	}
	var panicErr *errors.PanicError
	if !stderrors.As(err, &panicErr) {
		t.Fatalf("err = %T, want *errors.PanicError", err)
	}
	if panicErr.Value != "broken hook" {
		t.Errorf("panic value = %v, want %q", panicErr.Value, "broken hook")
	}
}

func TestSecondSetParametersRunsUpdateSequenceOnly(t *testing.T) {
	p, renderer, log := newProbe(t)
	initialize(t, p, renderer, log)

	status, err := waitTask(t, p.SetParameters(NewParameterView(map[string]any{"n": 2})))
	if status != task.StatusCompleted || err != nil {
		t.Fatalf("SetParameters = %v, %v", status, err)
	}
	log.assert(t, "OnParametersSet", "OnParametersSetAsync", "render scheduled")

	if n, ok := Value[int](p.Parameters(), "n"); !ok || n != 2 {
		t.Errorf("Parameters()[n] = %v, %v, want 2, true", n, ok)
	}
}

func TestOverlappingSetParametersSettleIndependently(t *testing.T) {
	p, renderer, log := newProbe(t)
	initialize(t, p, renderer, log)

	first := task.New()
	p.paramsAsyncFn = func() *task.Task { return first }
	resultA := p.SetParameters(ParameterView{})

	second := task.New()
	p.paramsAsyncFn = func() *task.Task { return second }
	resultB := p.SetParameters(ParameterView{})

	renderer.flush(t)

	second.Complete()
	status, err := waitTask(t, resultB)
	if status != task.StatusCompleted || err != nil {
		t.Fatalf("second call = %v, %v, want completed, nil", status, err)
	}
	if resultA.Settled() {
		t.Fatal("first call settled before its hook task")
	}

	fault := fmt.Errorf("late failure")
	first.Fail(fault)
	status, err = waitTask(t, resultA)
	if status != task.StatusFaulted || err != fault {
		t.Errorf("first call = %v, %v, want faulted %v", status, err, fault)
	}
}
