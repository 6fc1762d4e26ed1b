package plugin

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Invocation is the per-dispatch view handlers work with: the event, typed
// access to its images and target, a data service acting as the event's
// user, and the trace sink.
//
// An Invocation owns its data-service session. Close releases it; the
// Dispatcher closes the Invocation it creates on every exit path.
type Invocation struct {
	event   *Event
	sink    TraceSink
	service DataService
	session Session
	config  StepConfig

	closeOnce sync.Once
	closeErr  error
}

// NewInvocation opens a session for the event's user and wraps it with the
// event and sink. A nil factory yields an Invocation whose Service fails
// every call with ErrNoDataService. A nil sink discards traces.
func NewInvocation(ctx context.Context, ev *Event, sink TraceSink, factory ServiceFactory) (*Invocation, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = nopSink{}
	}
	inv := &Invocation{event: ev, sink: sink, service: unavailableService{}}
	if factory != nil {
		session, err := factory.OpenSession(ctx, ev.actingUser())
		if err != nil {
			return nil, fmt.Errorf("open data session for user %q: %w", ev.actingUser(), err)
		}
		inv.session = session
		inv.service = session
	}
	return inv, nil
}

// Event returns the underlying event. Callers must treat it as read-only.
func (inv *Invocation) Event() *Event { return inv.event }

func (inv *Invocation) Stage() Stage              { return inv.event.Stage }
func (inv *Invocation) MessageName() string       { return inv.event.MessageName }
func (inv *Invocation) PrimaryEntityName() string { return inv.event.PrimaryEntityName }
func (inv *Invocation) CorrelationID() string     { return inv.event.CorrelationID }
func (inv *Invocation) InitiatingUserID() string  { return inv.event.InitiatingUserID }
func (inv *Invocation) Depth() int                { return inv.event.Depth }

// Service returns the data service acting as the event's user.
func (inv *Invocation) Service() DataService { return inv.service }

// UnsecureConfig returns the unsecure configuration of the step currently
// running. It is empty outside a dispatch or when the step has none.
func (inv *Invocation) UnsecureConfig() string { return inv.config.Unsecure }

// SecureConfig returns the secure configuration of the step currently
// running.
func (inv *Invocation) SecureConfig() string { return inv.config.Secure }

// Target returns the Target input parameter when it holds a full record.
// It returns nil when the parameter is missing or holds a reference.
func (inv *Invocation) Target() *Record {
	v, ok := inv.event.Parameter(TargetParameter)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case *Record:
		return t
	case Record:
		return &t
	}
	return nil
}

// TargetReference returns the Target input parameter when it holds a
// reference. It returns nil when the parameter is missing or holds a record.
func (inv *Invocation) TargetReference() *Reference {
	v, ok := inv.event.Parameter(TargetParameter)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case Reference:
		return &t
	case *Reference:
		return t
	}
	return nil
}

// RequireTarget is Target for handlers that cannot proceed without one.
func (inv *Invocation) RequireTarget() (*Record, error) {
	if t := inv.Target(); t != nil {
		return t, nil
	}
	return nil, ErrMissingTarget
}

// Trace writes message to the sink with the correlation id and initiating
// user appended. Blank messages are dropped.
func (inv *Invocation) Trace(message string) {
	traceWithIdentity(inv.sink, inv.event, message)
}

// Tracef is Trace with formatting.
func (inv *Invocation) Tracef(format string, args ...any) {
	if strings.TrimSpace(format) == "" {
		return
	}
	inv.Trace(fmt.Sprintf(format, args...))
}

// Close releases the data-service session. Only the first call does any
// work; later calls return the same result.
func (inv *Invocation) Close() error {
	inv.closeOnce.Do(func() {
		if inv.session != nil {
			inv.closeErr = inv.session.Close()
		}
	})
	return inv.closeErr
}

// PreImage returns the event's pre-image viewed as *T, or nil when the step
// has no pre-image registered.
func PreImage[T any](inv *Invocation) (*T, error) {
	return As[T](inv.event.PreImages.First())
}

// PostImage returns the event's post-image viewed as *T, or nil when the
// step has no post-image registered.
func PostImage[T any](inv *Invocation) (*T, error) {
	return As[T](inv.event.PostImages.First())
}
