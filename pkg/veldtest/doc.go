// Package veldtest provides an isolated harness for testing components
// without a real output target.
//
// A Harness owns a renderer, records every produced frame and every fault
// that reaches the failure boundary, and exposes synchronous helpers so
// tests can drive parameter assignments and wait for renders
// deterministically:
//
//	func TestCounter(t *testing.T) {
//	    h := veldtest.New(t)
//	    id := h.Register(&counter{})
//	    h.SetParameters(id, map[string]any{"delta": 2})
//	    h.WaitFrames(1)
//	    fmt.Println(h.LastTree(id))
//	}
package veldtest
