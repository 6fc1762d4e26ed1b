// Package plugin dispatches record-lifecycle events raised by a business
// platform to the handlers registered for them.
//
// The host raises an event for every pipeline step it runs: a stage
// (PreValidation, PreOperation, PostOperation), a message such as "Update",
// and the logical name of the entity involved. A Dispatcher finds every
// handler registered for that combination and runs them in order, giving
// each one an Invocation with typed access to the event's target and images,
// a data service acting as the event's user, and a trace sink.
//
// # Quick Start
//
// Define a handler:
//
//	type AccountStatus struct{}
//
//	func (AccountStatus) Handle(ctx context.Context, inv *plugin.Invocation) error {
//	    acct, err := plugin.PostImage[Account](inv)
//	    if err != nil || acct == nil {
//	        return err
//	    }
//	    rec, err := plugin.ToRecord(&Account{AccountID: acct.AccountID, Status: &status})
//	    if err != nil {
//	        return err
//	    }
//	    return inv.Service().Update(ctx, rec)
//	}
//
// Register it and execute events:
//
//	reg := plugin.NewRegistry()
//	reg.Register(plugin.On(plugin.PostOperation, "Update", "account"), AccountStatus{})
//
//	d := plugin.New(reg, plugin.WithName("AccountStatus"))
//
//	err := d.Execute(ctx, &plugin.Services{
//	    Event:   ev,
//	    Sink:    traceLog,
//	    Factory: store,
//	})
//
// # Matching
//
// An EventKey selects events by stage, message, and entity. Stage must be
// equal; an empty message or entity matches anything. Names compare
// case-insensitively. Every matching registration runs, in registration
// order, and the first failure stops the rest. Registering the same handler
// twice runs it twice.
//
// When nothing matches, Execute traces entry and exit and returns nil without
// opening a data session.
//
// # Invocation
//
// One Invocation is created per Execute and shared by the handlers it runs.
// It exposes:
//
//   - Target, the record the operation acts on, or TargetReference when the
//     host sent only a reference (Delete, Assign)
//   - PreImage and PostImage, which project an image snapshot onto a typed
//     struct by json tag, returning nil when the step has no image
//   - Service, a DataService acting as the event's user
//   - UnsecureConfig and SecureConfig, the strings the running step was
//     registered with through RegisterWithConfig
//   - Trace and Tracef, which append the correlation id and initiating user
//
// The data session behind Service is released when Execute returns, on every
// path.
//
// # Errors
//
// A handler error is traced as "Exception: <message>" and returned unchanged,
// so callers can compare it with errors.Is. A panicking handler is recovered
// and reported as *PanicError. Invalid input is reported with the sentinel
// errors ErrNilServices and ErrInvalidEvent.
//
// # Hooks
//
// Hooks observe the dispatch without changing it:
//
//	d := plugin.New(reg,
//	    plugin.WithOnDispatch(func(ctx context.Context, ev *plugin.Event, handler string) {...}),
//	    plugin.WithOnSuccess(func(ctx context.Context, ev *plugin.Event, handler string, d time.Duration) {...}),
//	    plugin.WithOnFailure(func(ctx context.Context, ev *plugin.Event, handler string, err error, d time.Duration) {...}),
//	    plugin.WithOnNoMatch(func(ctx context.Context, ev *plugin.Event) {...}),
//	    plugin.WithOnComplete(func(ctx context.Context, ev *plugin.Event, matched int, err error, d time.Duration) {...}),
//	)
//
// Multiple hooks of the same type are called in order. The metrics package
// builds its Prometheus collectors on these hooks.
//
// # Tracing
//
// Execute opens a "plugin.execute" span and one "plugin.handler" span per
// handler using the global OpenTelemetry provider, or the one passed with
// WithTracerProvider.
//
// # Thread Safety
//
// A Dispatcher copies its registrations when created and holds no per-event
// state, so it is safe for concurrent use. An Invocation belongs to a single
// Execute call.
package plugin
