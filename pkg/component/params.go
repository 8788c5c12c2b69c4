package component

import (
	"slices"
)

// ParameterView is an immutable snapshot of the externally supplied input
// values for one parameter assignment.
type ParameterView struct {
	values map[string]any
}

// NewParameterView copies values into a view. A nil map yields the empty
// view.
func NewParameterView(values map[string]any) ParameterView {
	if len(values) == 0 {
		return ParameterView{}
	}
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return ParameterView{values: copied}
}

// Get returns the named value and whether it was supplied.
func (v ParameterView) Get(name string) (any, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Names returns the supplied parameter names in sorted order.
func (v ParameterView) Names() []string {
	names := make([]string, 0, len(v.values))
	for name := range v.values {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of supplied parameters.
func (v ParameterView) Len() int {
	return len(v.values)
}

// Value returns the named parameter as T. The second result is false when
// the parameter is missing or has a different type.
func Value[T any](v ParameterView, name string) (T, bool) {
	var zero T
	raw, ok := v.values[name]
	if !ok {
		return zero, false
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// ParameterReceiver is implemented by components that bind incoming
// values onto their own fields. ApplyParameters runs before the lifecycle
// hooks; a returned error is a hook fault and aborts the sequence.
type ParameterReceiver interface {
	ApplyParameters(view ParameterView) error
}
