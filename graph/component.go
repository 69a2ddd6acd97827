package graph

import (
	"context"
	"fmt"
)

// InputSocket declares a named input of a component.
type InputSocket struct {
	// Name is the socket name, unique within the component.
	Name string

	// Optional sockets may stay unset; the component then receives no entry for them.
	Optional bool
}

// Required returns required input sockets with the given names.
func Required(names ...string) []InputSocket {
	sockets := make([]InputSocket, len(names))
	for i, n := range names {
		sockets[i] = InputSocket{Name: n}
	}
	return sockets
}

// Component is a unit of work wired into a Pipeline.
//
// Run receives one entry per input socket that has a value and returns values
// keyed by output socket name. Run must not modify the input values: they may be
// shared with other components consuming the same upstream output.
type Component interface {
	InputSockets() []InputSocket
	OutputSockets() []string
	Run(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// FuncComponent adapts a function to the Component interface.
type FuncComponent struct {
	Inputs  []InputSocket
	Outputs []string
	Fn      func(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

var _ Component = (*FuncComponent)(nil)

// NewFuncComponent creates a FuncComponent whose inputs are all required.
func NewFuncComponent(inputs, outputs []string, fn func(ctx context.Context, inputs map[string]any) (map[string]any, error)) *FuncComponent {
	return &FuncComponent{
		Inputs:  Required(inputs...),
		Outputs: outputs,
		Fn:      fn,
	}
}

// InputSockets implements Component.
func (f *FuncComponent) InputSockets() []InputSocket { return f.Inputs }

// OutputSockets implements Component.
func (f *FuncComponent) OutputSockets() []string { return f.Outputs }

// Run implements Component.
func (f *FuncComponent) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return f.Fn(ctx, inputs)
}

// Input returns the value of socket name converted to T.
func Input[T any](inputs map[string]any, name string) (T, error) {
	var zero T
	raw, ok := inputs[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnsatisfiedInput, name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: socket %s wants %T, got %T", ErrInputType, name, zero, raw)
	}
	return v, nil
}

// OptionalInput returns the value of socket name converted to T, or def when the socket is unset.
func OptionalInput[T any](inputs map[string]any, name string, def T) (T, error) {
	if raw, ok := inputs[name]; !ok || raw == nil {
		return def, nil
	}
	return Input[T](inputs, name)
}
