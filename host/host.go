// Package host binds the plugin dispatcher to raw event payloads. A Host
// recognizes the payload format, decodes it into a plugin.Event, and runs
// the dispatcher with a data-service factory and trace sink.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bjaus/plugin"
	"github.com/bjaus/plugin/internal/ids"
)

// ErrNoSource is returned when no source recognizes a payload.
var ErrNoSource = errors.New("host: no source matched event")

// ErrNoEvent is returned when a source parses a payload into no event.
var ErrNoEvent = errors.New("no event")

// Host feeds raw event payloads to a Dispatcher.
//
// Host is safe for concurrent use once constructed.
type Host struct {
	dispatcher *plugin.Dispatcher
	factory    plugin.ServiceFactory
	inspector  Inspector
	sources    []Source
	sink       plugin.TraceSink
	logger     *slog.Logger

	// Adaptive ordering: try last successful source first
	lastMatch atomic.Value // stores string
}

// Option configures a Host.
type Option func(*Host)

// WithSource adds a source. Sources are tried in the order added. When no
// source is given, CompactSource and RemoteContextSource are used.
func WithSource(s Source) Option {
	return func(h *Host) {
		h.sources = append(h.sources, s)
	}
}

// WithInspector replaces the JSON inspector used for source matching.
func WithInspector(i Inspector) Option {
	return func(h *Host) {
		if i != nil {
			h.inspector = i
		}
	}
}

// WithSink sets the trace sink passed to every dispatch. By default traces
// go to the logger at debug level.
func WithSink(s plugin.TraceSink) Option {
	return func(h *Host) {
		h.sink = s
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a Host that dispatches with d and opens data sessions from
// factory.
//
// Example:
//
//	h := host.New(d, store,
//	    host.WithLogger(logger),
//	    host.WithSource(host.CompactSource()),
//	)
//	err := h.Process(ctx, payload)
func New(d *plugin.Dispatcher, factory plugin.ServiceFactory, opts ...Option) *Host {
	h := &Host{
		dispatcher: d,
		factory:    factory,
		inspector:  JSONInspector(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if len(h.sources) == 0 {
		h.sources = []Source{CompactSource(), RemoteContextSource()}
	}
	if h.sink == nil {
		h.sink = plugin.SlogSink(h.logger)
	}
	return h
}

// Process decodes raw and runs the dispatcher for it.
//
// The processing flow:
//  1. Use discriminators to find a matching source
//  2. Parse the payload with that source
//  3. Assign a correlation id if the payload has none
//  4. Execute the dispatcher
//
// Handler errors are returned unchanged.
func (h *Host) Process(ctx context.Context, raw []byte) error {
	ev, err := h.Decode(raw)
	if err != nil {
		return err
	}
	return h.Dispatch(ctx, ev)
}

// Decode finds the source for raw and parses it, without dispatching.
func (h *Host) Decode(raw []byte) (*plugin.Event, error) {
	source, err := h.match(raw)
	if err != nil {
		h.logger.Warn("event not recognized", slog.Int("bytes", len(raw)), slog.Any("error", err))
		return nil, err
	}

	ev, err := source.Parse(raw)
	if err != nil {
		h.logger.Warn("event parse failed", slog.String("source", source.Name()), slog.Any("error", err))
		return nil, fmt.Errorf("%s: parse event: %w", source.Name(), err)
	}
	if ev == nil {
		h.logger.Warn("event parse failed", slog.String("source", source.Name()), slog.Any("error", ErrNoEvent))
		return nil, fmt.Errorf("%s: parse event: %w", source.Name(), ErrNoEvent)
	}
	if ev.CorrelationID == "" {
		ev.CorrelationID = ids.New()
	}
	return ev, nil
}

// Dispatch runs the dispatcher for an already decoded event.
func (h *Host) Dispatch(ctx context.Context, ev *plugin.Event) error {
	err := h.dispatcher.Execute(ctx, &plugin.Services{
		Event:   ev,
		Sink:    h.sink,
		Factory: h.factory,
	})
	if err != nil {
		h.logger.Error("plugin execution failed",
			slog.String("plugin", h.dispatcher.Name()),
			slog.String("message", ev.MessageName),
			slog.String("entity", ev.PrimaryEntityName),
			slog.String("correlation_id", ev.CorrelationID),
			slog.Any("error", err),
		)
	}
	return err
}

// match finds a source whose discriminator matches raw, trying the last
// matched source first.
func (h *Host) match(raw []byte) (Source, error) {
	view, err := h.inspector.Inspect(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSource, err)
	}

	if last, ok := h.lastMatch.Load().(string); ok && last != "" {
		for _, src := range h.sources {
			if src.Name() == last && src.Discriminator().Match(view) {
				return src, nil
			}
		}
	}

	for _, src := range h.sources {
		if src.Discriminator().Match(view) {
			h.lastMatch.Store(src.Name())
			return src, nil
		}
	}
	return nil, ErrNoSource
}
