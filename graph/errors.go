package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName is returned when a component name is registered twice.
	ErrDuplicateName = errors.New("duplicate component name")

	// ErrInvalidName is returned when a component name is empty or contains a '.'.
	ErrInvalidName = errors.New("invalid component name")

	// ErrUnknownComponent is returned when a connection or input refers to an unregistered component.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrUnknownSocket is returned when a socket is not declared by its component,
	// or when an omitted socket name cannot be resolved unambiguously.
	ErrUnknownSocket = errors.New("unknown socket")

	// ErrSocketAlreadyBound is returned when an input socket would receive from more than one source.
	ErrSocketAlreadyBound = errors.New("input socket already bound")

	// ErrCycleDetected is returned by Run and Order when the connections form a cycle.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrUnsatisfiedInput is returned when a required input socket has neither an
	// external value nor a produced upstream output.
	ErrUnsatisfiedInput = errors.New("unsatisfied input")

	// ErrInputType is returned when an input value does not have the type a component expects.
	ErrInputType = errors.New("unexpected input type")
)

// ComponentError wraps an error returned by a component during Run.
type ComponentError struct {
	// Component is the name the failing component was registered under.
	Component string
	// Err is the underlying error.
	Err error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %s: %v", e.Component, e.Err)
}

func (e *ComponentError) Unwrap() error { return e.Err }
