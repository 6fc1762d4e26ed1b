package plugin

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for dispatch spans.
const tracerName = "github.com/bjaus/plugin"

// Dispatcher routes events to the handlers registered for them.
//
// Usage:
//  1. Build a Registry and Register handlers
//  2. Create a Dispatcher with New
//  3. Call Execute once per event raised by the host
//
// A Dispatcher copies the registrations at construction and never changes
// them, and it keeps no per-event state, so one instance may serve
// concurrent Execute calls.
type Dispatcher struct {
	name     string
	registry *Registry
	hooks    hooks
	tracer   trace.Tracer
}

// New creates a Dispatcher over a snapshot of reg's registrations.
//
// Example:
//
//	reg := plugin.NewRegistry()
//	reg.Register(plugin.On(plugin.PostOperation, "Update", "account"), handler)
//
//	d := plugin.New(reg,
//	    plugin.WithName("AccountPerformanceStatus"),
//	    plugin.WithOnFailure(func(ctx context.Context, ev *plugin.Event, h string, err error, d time.Duration) {
//	        logger.Error("handler failed", "handler", h, "error", err)
//	    }),
//	)
func New(reg *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{name: "Dispatcher", registry: &Registry{}}
	if reg != nil {
		d.registry.regs = reg.Registrations()
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// WithName sets the plugin name written in entry, exit, and firing traces.
func WithName(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.name = name
		}
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for dispatch spans.
// By default the global provider is used, which is a no-op until one is
// installed.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
	}
}

// Name returns the plugin name.
func (d *Dispatcher) Name() string { return d.name }

// Registrations returns a copy of the dispatcher's registrations.
func (d *Dispatcher) Registrations() []Registration {
	return d.registry.Registrations()
}

// Execute runs every handler registered for the event, in registration
// order, sharing one Invocation between them.
//
// The processing flow:
//  1. Reject nil services and invalid events
//  2. Trace entry
//  3. Match registrations; return nil if there are none
//  4. Open the Invocation (and its data session)
//  5. Run handlers in order, stopping at the first failure
//  6. Close the Invocation and trace exit, whatever happened
//
// A handler failure is traced and returned unchanged. Panics are recovered
// and returned as *PanicError.
func (d *Dispatcher) Execute(ctx context.Context, svc *Services) (err error) {
	if svc == nil {
		return ErrNilServices
	}
	ev := svc.Event
	if err := ev.Validate(); err != nil {
		return err
	}
	sink := svc.Sink
	if sink == nil {
		sink = nopSink{}
	}

	start := time.Now()
	sink.Trace(fmt.Sprintf("Entered %s.Execute()", d.name))

	ctx, span := d.tracer.Start(ctx, "plugin.execute",
		trace.WithAttributes(
			attribute.String("plugin.name", d.name),
			attribute.String("plugin.stage", ev.Stage.String()),
			attribute.String("plugin.message", ev.MessageName),
			attribute.String("plugin.entity", ev.PrimaryEntityName),
			attribute.String("plugin.correlation_id", ev.CorrelationID),
			attribute.Int("plugin.depth", ev.Depth),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	matches := d.registry.Match(ev.Stage, ev.MessageName, ev.PrimaryEntityName)

	defer func() {
		span.SetAttributes(attribute.Int("plugin.matched", len(matches)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		d.hooks.complete(ctx, ev, len(matches), err, time.Since(start))
		sink.Trace(fmt.Sprintf("Exiting %s.Execute()", d.name))
	}()

	if len(matches) == 0 {
		d.hooks.noMatch(ctx, ev)
		return nil
	}

	inv, err := NewInvocation(ctx, ev, sink, svc.Factory)
	if err != nil {
		traceWithIdentity(sink, ev, "Exception: "+err.Error())
		return err
	}
	defer func() {
		if cerr := inv.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("release data session: %w", cerr)
			traceWithIdentity(sink, ev, "Exception: "+err.Error())
		}
	}()

	for _, reg := range matches {
		sink.Trace(fmt.Sprintf("%s is firing for Entity: %s, Message: %s, Method: %s",
			d.name, ev.PrimaryEntityName, ev.MessageName, reg.Name))

		if err := d.invoke(ctx, reg, inv); err != nil {
			return err
		}
	}
	return nil
}

// invoke runs one handler inside its own span and reports the outcome to
// the trace sink and hooks.
func (d *Dispatcher) invoke(ctx context.Context, reg Registration, inv *Invocation) error {
	ctx, span := d.tracer.Start(ctx, "plugin.handler",
		trace.WithAttributes(
			attribute.String("plugin.handler", reg.Name),
			attribute.String("plugin.key", reg.Key.String()),
		),
	)
	defer span.End()

	ev := inv.Event()
	d.hooks.dispatch(ctx, ev, reg.Name)

	inv.config = reg.Config
	defer func() { inv.config = StepConfig{} }()

	start := time.Now()
	err := call(ctx, reg, inv)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		inv.Trace(exception(err))
		d.hooks.failure(ctx, ev, reg.Name, err, duration)
		return err
	}

	span.SetStatus(codes.Ok, "")
	d.hooks.success(ctx, ev, reg.Name, duration)
	return nil
}

// exception formats a handler failure for the trace sink. Recovered panics
// carry the handler's stack.
func exception(err error) string {
	msg := "Exception: " + err.Error()
	var perr *PanicError
	if errors.As(err, &perr) && len(perr.Stack) > 0 {
		msg += "\n" + strings.TrimRight(string(perr.Stack), "\n")
	}
	return msg
}

// call invokes the handler, converting a panic into a *PanicError.
func call(ctx context.Context, reg Registration, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Handler: reg.Name, Value: r, Stack: debug.Stack()}
		}
	}()
	return reg.Handler.Handle(ctx, inv)
}
