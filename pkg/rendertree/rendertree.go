// Package rendertree records the output-tree description produced by a
// component's render callback.
//
// The package is a recording sink, not a markup engine: a Builder captures
// an ordered frame sequence and a finished Tree is an immutable snapshot of
// it. How those frames become actual output is left to whatever consumes
// the tree.
package rendertree

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnbalanced is returned by Finish when elements are still open.
var ErrUnbalanced = errors.New("rendertree: unclosed element")

// ErrAttributeOutsideElement is returned by Finish when an attribute was
// added anywhere other than directly after an element was opened.
var ErrAttributeOutsideElement = errors.New("rendertree: attribute outside element tag")

// ErrCloseWithoutOpen is returned by Finish when CloseElement was called
// with no element open.
var ErrCloseWithoutOpen = errors.New("rendertree: close without open element")

// FrameKind identifies the type of a tree frame.
type FrameKind int

const (
	// FrameOpenElement starts an element region.
	FrameOpenElement FrameKind = iota
	// FrameCloseElement ends the most recently opened element region.
	FrameCloseElement
	// FrameAttribute attaches a named value to the enclosing element.
	FrameAttribute
	// FrameText is a literal content frame.
	FrameText
)

func (k FrameKind) String() string {
	switch k {
	case FrameOpenElement:
		return "open"
	case FrameCloseElement:
		return "close"
	case FrameAttribute:
		return "attribute"
	case FrameText:
		return "text"
	default:
		return "unknown"
	}
}

// Frame is one entry in the recorded tree.
type Frame struct {
	Kind  FrameKind
	Name  string
	Value string
}

// Builder accumulates frames during a single render callback.
// Builders are single-use: create one per render, then call Finish.
type Builder struct {
	frames []Frame
	open   int
	err    error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// OpenElement starts an element with the given name.
func (b *Builder) OpenElement(name string) {
	b.frames = append(b.frames, Frame{Kind: FrameOpenElement, Name: name})
	b.open++
}

// AddAttribute attaches a named value to the element opened last.
// Attributes must directly follow OpenElement or another attribute.
func (b *Builder) AddAttribute(name, value string) {
	if n := len(b.frames); n == 0 ||
		(b.frames[n-1].Kind != FrameOpenElement && b.frames[n-1].Kind != FrameAttribute) {
		b.fail(fmt.Errorf("%w: %q", ErrAttributeOutsideElement, name))
		return
	}
	b.frames = append(b.frames, Frame{Kind: FrameAttribute, Name: name, Value: value})
}

// AddText appends a content frame.
func (b *Builder) AddText(content string) {
	b.frames = append(b.frames, Frame{Kind: FrameText, Value: content})
}

// CloseElement ends the most recently opened element.
func (b *Builder) CloseElement() {
	if b.open == 0 {
		b.fail(ErrCloseWithoutOpen)
		return
	}
	b.frames = append(b.frames, Frame{Kind: FrameCloseElement})
	b.open--
}

// Finish validates the recorded frames and returns the immutable tree.
// An unbalanced or misused builder returns an error instead of a tree.
func (b *Builder) Finish() (*Tree, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.open != 0 {
		return nil, fmt.Errorf("%w: %d still open", ErrUnbalanced, b.open)
	}
	frames := make([]Frame, len(b.frames))
	copy(frames, b.frames)
	return &Tree{frames: frames}, nil
}

// Tree is an immutable snapshot of one render's output.
type Tree struct {
	frames []Frame
}

// Frames returns the recorded frames in document order.
func (t *Tree) Frames() []Frame {
	frames := make([]Frame, len(t.frames))
	copy(frames, t.frames)
	return frames
}

// Len returns the number of recorded frames.
func (t *Tree) Len() int {
	return len(t.frames)
}

// String renders an indented textual dump of the tree for diagnostics.
func (t *Tree) String() string {
	var sb strings.Builder
	depth := 0
	indent := func() {
		for i := 0; i < depth; i++ {
			sb.WriteString("  ")
		}
	}
	for _, f := range t.frames {
		switch f.Kind {
		case FrameOpenElement:
			indent()
			sb.WriteString("<")
			sb.WriteString(f.Name)
			sb.WriteString(">\n")
			depth++
		case FrameAttribute:
			indent()
			sb.WriteString("@")
			sb.WriteString(f.Name)
			sb.WriteString("=")
			sb.WriteString(f.Value)
			sb.WriteString("\n")
		case FrameText:
			indent()
			sb.WriteString(f.Value)
			sb.WriteString("\n")
		case FrameCloseElement:
			depth--
			indent()
			sb.WriteString("</>\n")
		}
	}
	return sb.String()
}
