// Package render provides the renderer that owns components and drains
// their coalesced render queue.
//
// The renderer is the external collaborator the lifecycle core composes
// with: it assigns component identities, binds render handles, runs all
// component work on one dispatcher, and acts as the failure boundary for
// faults that escape the lifecycle.
package render

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/go-veld/veld/pkg/component"
	"github.com/go-veld/veld/pkg/dispatch"
	"github.com/go-veld/veld/pkg/errors"
	"github.com/go-veld/veld/pkg/rendertree"
	"github.com/go-veld/veld/pkg/task"
)

type renderItem struct {
	componentID string
	fragment    component.RenderFragment
}

// Renderer tracks registered components and the renders they have queued.
type Renderer struct {
	// OnFrame is called on the dispatcher with each freshly produced
	// tree. Set it before registering components.
	OnFrame func(componentID string, tree *rendertree.Tree)

	// OnFailure is called with every fault that reaches the failure
	// boundary, after it has been reported to the global error handler.
	// Set it before registering components.
	OnFailure func(err error)

	dispatcher *dispatch.Dispatcher

	mu             sync.Mutex
	components     map[string]component.Component
	trees          map[string]*rendertree.Tree
	queue          []renderItem
	flushScheduled bool
	hotReload      bool
}

// New creates a renderer with its own dispatcher.
func New() *Renderer {
	return &Renderer{
		dispatcher: dispatch.New(),
		components: make(map[string]component.Component),
		trees:      make(map[string]*rendertree.Tree),
	}
}

// Dispatcher returns the dispatcher all component work runs on.
func (r *Renderer) Dispatcher() *dispatch.Dispatcher {
	return r.dispatcher
}

// Register assigns c an identity and binds its render handle.
// Attachment runs on the dispatcher; Register blocks until it is done.
func (r *Renderer) Register(c component.Component) (string, error) {
	id := uuid.NewString()
	var attachErr error
	status, err := r.dispatcher.Invoke(func() {
		attachErr = component.Attach(c, component.NewRenderHandle(r, id))
		if attachErr == nil {
			r.mu.Lock()
			r.components[id] = c
			r.mu.Unlock()
		}
	}).Wait()
	if status == task.StatusFaulted {
		return "", err
	}
	if attachErr != nil {
		return "", attachErr
	}
	return id, nil
}

// SetParameters assigns values to the identified component on the
// dispatcher and returns the lifecycle's completion signal. A fault is
// also routed to the failure boundary.
func (r *Renderer) SetParameters(id string, values map[string]any) *task.Task {
	r.mu.Lock()
	c, ok := r.components[id]
	r.mu.Unlock()
	if !ok {
		return task.Faulted(fmt.Errorf("render: unknown component %q", id))
	}

	result := r.dispatcher.InvokeTask(func() *task.Task {
		return c.SetParameters(component.NewParameterView(values))
	})
	go func() {
		if status, err := result.Wait(); status == task.StatusFaulted {
			r.dispatcher.Invoke(func() {
				r.HandleFailure(&errors.LifecycleError{
					Op:          "render.SetParameters",
					Kind:        errors.KindHook,
					ComponentID: id,
					Err:         err,
				})
			})
		}
	}()
	return result
}

// Tree returns the most recently produced output tree for the component,
// or nil if it has not rendered yet.
func (r *Renderer) Tree(id string) *rendertree.Tree {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trees[id]
}

// EnqueueRender implements component.Renderer. The fragment runs when the
// dispatcher reaches the queued flush, so repeated lifecycle work in the
// same turn coalesces ahead of it.
func (r *Renderer) EnqueueRender(componentID string, fragment component.RenderFragment) {
	r.mu.Lock()
	r.queue = append(r.queue, renderItem{componentID: componentID, fragment: fragment})
	scheduled := r.flushScheduled
	r.flushScheduled = true
	r.mu.Unlock()

	if !scheduled {
		r.dispatcher.Invoke(r.flushQueue)
	}
}

// flushQueue drains the render queue on the dispatcher, including items
// enqueued while earlier ones rendered.
func (r *Renderer) flushQueue() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.flushScheduled = false
			r.mu.Unlock()
			return
		}
		queue := r.queue
		r.queue = nil
		r.mu.Unlock()

		for _, item := range queue {
			r.renderComponent(item)
		}
	}
}

func (r *Renderer) renderComponent(item renderItem) {
	b := rendertree.NewBuilder()
	panicked := false
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				panicked = true
				r.HandleFailure(&errors.LifecycleError{
					Op:          "render.Renderer.flushQueue",
					Kind:        errors.KindRender,
					ComponentID: item.componentID,
					Err:         &errors.PanicError{Op: "component.Build", Value: rec},
					StackTrace:  errors.CaptureStack(),
				})
			}
		}()
		item.fragment(b)
	}()
	if panicked {
		return
	}

	tree, err := b.Finish()
	if err != nil {
		r.HandleFailure(&errors.LifecycleError{
			Op:          "render.Renderer.flushQueue",
			Kind:        errors.KindRender,
			ComponentID: item.componentID,
			Err:         err,
		})
		return
	}

	r.mu.Lock()
	r.trees[item.componentID] = tree
	r.mu.Unlock()
	if r.OnFrame != nil {
		r.OnFrame(item.componentID, tree)
	}
}

// Invoke implements component.Renderer.
func (r *Renderer) Invoke(fn func()) *task.Task {
	return r.dispatcher.Invoke(fn)
}

// HotReloadInProgress implements component.Renderer.
func (r *Renderer) HotReloadInProgress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hotReload
}

// TriggerHotReload forces a re-render of every registered component with
// the ShouldRender veto bypassed, the way a metadata update would. The
// returned task settles once the refresh has been scheduled.
func (r *Renderer) TriggerHotReload() *task.Task {
	return r.dispatcher.Invoke(func() {
		r.mu.Lock()
		r.hotReload = true
		components := make([]component.Component, 0, len(r.components))
		for _, c := range r.components {
			components = append(components, c)
		}
		r.mu.Unlock()

		for _, c := range components {
			if requester, ok := c.(interface{ RequestRender() }); ok {
				requester.RequestRender()
			}
		}

		r.mu.Lock()
		r.hotReload = false
		r.mu.Unlock()
	})
}

// HandleFailure implements component.Renderer: the failure boundary.
// Faults are reported to the global error handler and then to OnFailure.
func (r *Renderer) HandleFailure(err error) {
	if err == nil {
		return
	}
	reported, ok := err.(*errors.LifecycleError)
	if !ok {
		reported = &errors.LifecycleError{
			Op:   "render.Renderer.HandleFailure",
			Kind: errors.KindDispatch,
			Err:  err,
		}
	}
	errors.Report(reported)
	if r.OnFailure != nil {
		r.OnFailure(err)
	}
}

// Close stops the dispatcher after draining queued work.
func (r *Renderer) Close() {
	r.dispatcher.Close()
}
