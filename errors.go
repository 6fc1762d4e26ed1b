package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrNilServices is returned by Execute when the host passes no services.
	ErrNilServices = errors.New("plugin: services are required")

	// ErrInvalidEvent is returned when an event is missing mandatory fields.
	ErrInvalidEvent = errors.New("plugin: invalid event")

	// ErrMissingTarget is returned by RequireTarget when the event carries no
	// target record. It usually means the step is registered on the wrong message.
	ErrMissingTarget = errors.New("plugin: target does not exist")

	// ErrNoDataService is returned by data-service calls made through an
	// Invocation that was created without a ServiceFactory.
	ErrNoDataService = errors.New("plugin: no data service configured")

	// ErrSessionClosed is returned by a Session used after Close.
	ErrSessionClosed = errors.New("plugin: session is closed")

	// ErrNotFound is returned by Retrieve, Update, and Delete when the record
	// does not exist.
	ErrNotFound = errors.New("plugin: record not found")
)

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Handler string
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in handler %s: %v", e.Handler, e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
