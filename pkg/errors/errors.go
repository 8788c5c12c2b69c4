// Package errors provides structured error handling for the Veld framework.
package errors

import (
	"fmt"
	"time"
)

// Kind identifies the category of an error.
type Kind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindAttach indicates a component attachment error.
	KindAttach
	// KindHook indicates a failure raised by a lifecycle hook.
	KindHook
	// KindRender indicates a rendering error.
	KindRender
	// KindDispatch indicates a failure dispatched from outside the lifecycle.
	KindDispatch
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k Kind) String() string {
	switch k {
	case KindAttach:
		return "attach"
	case KindHook:
		return "hook"
	case KindRender:
		return "render"
	case KindDispatch:
		return "dispatch"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// LifecycleError represents a structured error in the Veld framework.
type LifecycleError struct {
	// Op is the operation that failed (e.g., "component.SetParameters").
	Op string
	// Kind categorizes the error.
	Kind Kind
	// Err is the underlying error.
	Err error
	// ComponentID identifies the component involved, if any.
	ComponentID string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *LifecycleError) Error() string {
	if e.ComponentID != "" {
		return fmt.Sprintf("%s [%s] component=%s: %v", e.Op, e.Kind, e.ComponentID, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "dispatch.Invoke").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// AlreadyAttachedError reports a second attach attempt on a component whose
// render handle is already bound. This is a fatal misuse of the API: the
// handle from the first attach remains bound and the second one is discarded.
type AlreadyAttachedError struct {
	// ComponentID identifies the component from the first, surviving attach.
	ComponentID string
}

func (e *AlreadyAttachedError) Error() string {
	if e.ComponentID != "" {
		return fmt.Sprintf("component %s: render handle already attached", e.ComponentID)
	}
	return "component: render handle already attached"
}

// Handler receives errors reported by the Veld framework.
type Handler interface {
	// HandleError is called when an error occurs.
	HandleError(err *LifecycleError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
