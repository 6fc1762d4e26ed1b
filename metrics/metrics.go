// Package metrics exports dispatcher activity as Prometheus metrics by
// installing dispatcher hooks.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bjaus/plugin"
)

// Outcome label values for plugin_dispatch_total.
const (
	OutcomeHandled = "handled"
	OutcomeNoMatch = "no_match"
	OutcomeFailed  = "failed"
)

// Collector records dispatch counts and handler timings.
type Collector struct {
	mu sync.Mutex

	dispatchTotal    *prometheus.CounterVec
	handlerFailures  *prometheus.CounterVec
	handlerDurations *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// New creates a Collector and registers it with registerer, or with the
// default registerer when nil. Collectors already registered by an earlier
// Collector are not an error.
func New(registerer prometheus.Registerer) (*Collector, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	c := &Collector{
		registerer: registerer,
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plugin",
				Name:      "dispatch_total",
				Help:      "Events dispatched, by stage, message, entity, and outcome",
			},
			[]string{"stage", "message", "entity", "outcome"},
		),
		handlerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plugin",
				Name:      "handler_failures_total",
				Help:      "Handler invocations that returned an error or panicked",
			},
			[]string{"handler"},
		),
		handlerDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "plugin",
				Name:      "handler_duration_seconds",
				Help:      "Handler execution time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"handler"},
		),
	}
	if err := c.register(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collector) register() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registered {
		return nil
	}

	for i, col := range []prometheus.Collector{c.dispatchTotal, c.handlerFailures, c.handlerDurations} {
		if err := c.registerer.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
			// Reuse the collector that is already registered.
			switch i {
			case 0:
				c.dispatchTotal = are.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				c.handlerFailures = are.ExistingCollector.(*prometheus.CounterVec)
			case 2:
				c.handlerDurations = are.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
	}

	c.registered = true
	return nil
}

// Options returns the dispatcher options that feed the collector.
//
// Example:
//
//	m, err := metrics.New(prometheus.DefaultRegisterer)
//	d := plugin.New(reg, m.Options()...)
func (c *Collector) Options() []plugin.Option {
	return []plugin.Option{
		plugin.WithOnSuccess(c.observeSuccess),
		plugin.WithOnFailure(c.observeFailure),
		plugin.WithOnComplete(c.observeComplete),
	}
}

func (c *Collector) observeSuccess(_ context.Context, _ *plugin.Event, handler string, d time.Duration) {
	c.handlerDurations.WithLabelValues(handler).Observe(d.Seconds())
}

func (c *Collector) observeFailure(_ context.Context, _ *plugin.Event, handler string, _ error, d time.Duration) {
	c.handlerDurations.WithLabelValues(handler).Observe(d.Seconds())
	c.handlerFailures.WithLabelValues(handler).Inc()
}

func (c *Collector) observeComplete(_ context.Context, ev *plugin.Event, matched int, err error, _ time.Duration) {
	outcome := OutcomeHandled
	switch {
	case err != nil:
		outcome = OutcomeFailed
	case matched == 0:
		outcome = OutcomeNoMatch
	}
	c.dispatchTotal.WithLabelValues(ev.Stage.String(), ev.MessageName, ev.PrimaryEntityName, outcome).Inc()
}
