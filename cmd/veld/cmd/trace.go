package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-veld/veld/cmd/veld/internal/scenario"
	"github.com/go-veld/veld/pkg/component"
	"github.com/go-veld/veld/pkg/render"
	"github.com/go-veld/veld/pkg/rendertree"
	"github.com/go-veld/veld/pkg/task"
)

func init() {
	RegisterCommand(&Command{
		Name:  "trace",
		Short: "Replay a lifecycle scenario and print the event trace",
		Long: `Trace loads a YAML scenario file, registers its scripted components
and drives them through the declared parameter assignments and hot
reloads, printing every lifecycle hook, render and fault as it
happens.`,
		Usage: "veld trace <scenario.yaml>",
		Run:   runTrace,
	})
}

// tracer serializes timestamped event lines from the dispatcher and the
// hook goroutines.
type tracer struct {
	mu    sync.Mutex
	start time.Time
}

func newTracer() *tracer {
	return &tracer{start: time.Now()}
}

func (tr *tracer) event(name, format string, args ...any) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	elapsed := time.Since(tr.start).Round(time.Millisecond)
	fmt.Printf("[%6s] %-10s %s\n", elapsed, name, fmt.Sprintf(format, args...))
}

// scripted is the component driven by scenario steps. Its async hooks
// sleep for the configured delays so suspended sequences show up in the
// trace.
type scripted struct {
	component.ComponentBase

	name        string
	initDelay   time.Duration
	updateDelay time.Duration
	trace       *tracer
}

func (s *scripted) OnInit() {
	s.trace.event(s.name, "OnInit")
}

func (s *scripted) OnInitAsync() *task.Task {
	s.trace.event(s.name, "OnInitAsync (delay %s)", s.initDelay)
	return delayed(s.initDelay)
}

func (s *scripted) OnParametersSet() {
	s.trace.event(s.name, "OnParametersSet")
}

func (s *scripted) OnParametersSetAsync() *task.Task {
	s.trace.event(s.name, "OnParametersSetAsync (delay %s)", s.updateDelay)
	return delayed(s.updateDelay)
}

func (s *scripted) Build(b *rendertree.Builder) {
	b.OpenElement(s.name)
	params := s.Parameters()
	for _, name := range params.Names() {
		value, _ := params.Get(name)
		b.AddAttribute(name, fmt.Sprint(value))
	}
	b.CloseElement()
}

func delayed(d time.Duration) *task.Task {
	if d <= 0 {
		return nil
	}
	return task.Go(func() error {
		time.Sleep(d)
		return nil
	})
}

func runTrace(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("trace requires a scenario file, see 'veld trace --help'")
	}

	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	trace := newTracer()

	// Frames arrive on the dispatcher keyed by renderer identity; map
	// them back to scenario names for the trace.
	var namesMu sync.Mutex
	names := make(map[string]string, len(sc.Components))

	r := render.New()
	defer r.Close()
	r.OnFrame = func(componentID string, tree *rendertree.Tree) {
		namesMu.Lock()
		name := names[componentID]
		namesMu.Unlock()
		trace.event(name, "frame\n%s", tree)
	}
	r.OnFailure = func(err error) {
		fmt.Fprintf(os.Stderr, "fault: %v\n", err)
	}

	ids := make(map[string]string, len(sc.Components))
	for _, spec := range sc.Components {
		c := &scripted{
			name:        spec.Name,
			initDelay:   time.Duration(spec.InitDelayMS) * time.Millisecond,
			updateDelay: time.Duration(spec.UpdateDelayMS) * time.Millisecond,
			trace:       trace,
		}
		id, err := r.Register(c)
		if err != nil {
			return fmt.Errorf("register %q: %w", spec.Name, err)
		}
		ids[spec.Name] = id
		namesMu.Lock()
		names[id] = spec.Name
		namesMu.Unlock()
		trace.event(spec.Name, "registered as %s", id)
	}

	for i, step := range sc.Steps {
		switch {
		case step.Set != "":
			trace.event(step.Set, "step %d: set parameters %v", i+1, step.Params)
			status, err := r.SetParameters(ids[step.Set], step.Params).Wait()
			trace.event(step.Set, "step %d: settled %s", i+1, status)
			if status == task.StatusFaulted {
				return fmt.Errorf("step %d faulted: %w", i+1, err)
			}
		case step.HotReload:
			trace.event("renderer", "step %d: hot reload", i+1)
			r.TriggerHotReload().Wait()
		}
	}

	// Let queued frames print before the renderer shuts down.
	r.Dispatcher().Invoke(func() {}).Wait()
	return nil
}
