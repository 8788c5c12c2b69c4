// Package testbed provides internal test components for the veldtest
// harness.
package testbed

import (
	"strconv"

	"github.com/go-veld/veld/pkg/component"
	"github.com/go-veld/veld/pkg/rendertree"
)

// Counter renders a running count and accepts "delta" parameters.
type Counter struct {
	component.ComponentBase
	Start int
	count int
}

func (c *Counter) OnInit() {
	c.count = c.Start
}

func (c *Counter) OnParametersSet() {
	if delta, ok := component.Value[int](c.Parameters(), "delta"); ok {
		c.count += delta
	}
}

// Increment bumps the count from any goroutine and requests a render.
func (c *Counter) Increment() {
	c.Dispatch(func() {
		c.count++
		c.RequestRender()
	})
}

func (c *Counter) Build(b *rendertree.Builder) {
	b.OpenElement("counter")
	b.AddText(strconv.Itoa(c.count))
	b.CloseElement()
}
