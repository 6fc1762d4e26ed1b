package plugin

import (
	"context"
	"time"
)

// OnDispatchFunc is called just before a matched handler runs.
type OnDispatchFunc func(ctx context.Context, ev *Event, handler string)

// OnSuccessFunc is called after a handler returns nil.
type OnSuccessFunc func(ctx context.Context, ev *Event, handler string, duration time.Duration)

// OnFailureFunc is called after a handler fails, before the error is
// returned to the host. Remaining handlers are not run.
type OnFailureFunc func(ctx context.Context, ev *Event, handler string, err error, duration time.Duration)

// OnNoMatchFunc is called when no registration matches the event. This is a
// normal outcome; Execute still returns nil.
type OnNoMatchFunc func(ctx context.Context, ev *Event)

// OnCompleteFunc is called once per Execute with the number of handlers that
// matched and the error Execute is about to return.
type OnCompleteFunc func(ctx context.Context, ev *Event, matched int, err error, duration time.Duration)

// hooks holds all configured hook functions.
type hooks struct {
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onFailure  []OnFailureFunc
	onNoMatch  []OnNoMatchFunc
	onComplete []OnCompleteFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOnDispatch adds a hook called just before each handler executes.
// Multiple hooks are called in order.
//
// Example:
//
//	plugin.WithOnDispatch(func(ctx context.Context, ev *plugin.Event, handler string) {
//	    logger.Debug("dispatching", "handler", handler, "message", ev.MessageName)
//	})
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onDispatch = append(d.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after a handler completes successfully.
// Multiple hooks are called in order.
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onSuccess = append(d.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after a handler fails.
// Multiple hooks are called in order. Hooks observe the failure; they cannot
// suppress it.
//
// Example:
//
//	plugin.WithOnFailure(func(ctx context.Context, ev *plugin.Event, handler string, err error, d time.Duration) {
//	    logger.Error("handler failed", "handler", handler, "error", err)
//	})
func WithOnFailure(fn OnFailureFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onFailure = append(d.hooks.onFailure, fn)
	}
}

// WithOnNoMatch adds a hook called when an event matches no registration.
func WithOnNoMatch(fn OnNoMatchFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onNoMatch = append(d.hooks.onNoMatch, fn)
	}
}

// WithOnComplete adds a hook called once at the end of every Execute that got
// past event validation.
func WithOnComplete(fn OnCompleteFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onComplete = append(d.hooks.onComplete, fn)
	}
}

func (h *hooks) dispatch(ctx context.Context, ev *Event, handler string) {
	for _, fn := range h.onDispatch {
		fn(ctx, ev, handler)
	}
}

func (h *hooks) success(ctx context.Context, ev *Event, handler string, d time.Duration) {
	for _, fn := range h.onSuccess {
		fn(ctx, ev, handler, d)
	}
}

func (h *hooks) failure(ctx context.Context, ev *Event, handler string, err error, d time.Duration) {
	for _, fn := range h.onFailure {
		fn(ctx, ev, handler, err, d)
	}
}

func (h *hooks) noMatch(ctx context.Context, ev *Event) {
	for _, fn := range h.onNoMatch {
		fn(ctx, ev)
	}
}

func (h *hooks) complete(ctx context.Context, ev *Event, matched int, err error, d time.Duration) {
	for _, fn := range h.onComplete {
		fn(ctx, ev, matched, err, d)
	}
}
