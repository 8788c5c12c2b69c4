// Package component provides the component lifecycle and render scheduling
// core of the Veld framework.
//
// A component is anything that embeds ComponentBase and produces an output
// tree from its Build method. The external renderer creates the component,
// binds it to a RenderHandle exactly once with Attach, and then drives it
// by assigning parameters. Everything after that is handled here: hook
// sequencing, render coalescing, and the propagation of hook failures to
// the renderer's failure boundary.
//
// # Defining a component
//
// Embed ComponentBase and override the hooks you need:
//
//	type clock struct {
//	    component.ComponentBase
//	    now time.Time
//	}
//
//	func (c *clock) OnInit() {
//	    c.now = time.Now()
//	}
//
//	func (c *clock) Build(b *rendertree.Builder) {
//	    b.OpenElement("clock")
//	    b.AddText(c.now.Format(time.RFC3339))
//	    b.CloseElement()
//	}
//
// Hooks you do not override keep their default behavior: the synchronous
// hooks are no-ops, the asynchronous hooks report no pending work, and
// ShouldRender always allows the render.
//
// # Lifecycle order
//
// The first parameter assignment runs OnInit, then OnInitAsync, then the
// parameters-set hooks. Every later assignment runs only the
// parameters-set hooks. When an asynchronous hook has real pending work, a
// render is scheduled before the lifecycle suspends on it so the output
// reflects the synchronous portion, and one more render is scheduled when
// the work completes. A cancelled hook task is treated as benign: the
// lifecycle continues without error and without an extra render.
//
// # Threading
//
// Components are confined to the renderer's dispatcher. State changed on
// another goroutine must be marshalled back with Dispatch before calling
// RequestRender:
//
//	go func() {
//	    result := fetch()
//	    c.Dispatch(func() {
//	        c.result = result
//	        c.RequestRender()
//	    })
//	}()
package component
