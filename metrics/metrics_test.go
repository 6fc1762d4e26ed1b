package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/plugin"
)

func updateEvent(entity string) *plugin.Services {
	return &plugin.Services{Event: &plugin.Event{
		Stage:             plugin.PostOperation,
		MessageName:       "Update",
		PrimaryEntityName: entity,
	}}
}

type stepName string

func (n stepName) Name() string { return string(n) }

func (n stepName) Handle(ctx context.Context, inv *plugin.Invocation) error {
	if n == "failing" {
		return errors.New("failed")
	}
	return nil
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	registry := plugin.NewRegistry()
	registry.Register(plugin.On(plugin.PostOperation, "Update", "account"), stepName("ok"))
	registry.Register(plugin.On(plugin.PostOperation, "Update", "contact"), stepName("failing"))
	d := plugin.New(registry, m.Options()...)

	ctx := context.Background()
	require.NoError(t, d.Execute(ctx, updateEvent("account")))
	require.NoError(t, d.Execute(ctx, updateEvent("account")))
	require.NoError(t, d.Execute(ctx, updateEvent("lead")))
	require.Error(t, d.Execute(ctx, updateEvent("contact")))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("PostOperation", "Update", "account", OutcomeHandled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("PostOperation", "Update", "lead", OutcomeNoMatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("PostOperation", "Update", "contact", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerFailures.WithLabelValues("failing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.handlerFailures.WithLabelValues("ok")))

	assert.Equal(t, 2, testutil.CollectAndCount(m.handlerDurations))
}

func TestNewToleratesRepeatedRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	second.handlerFailures.WithLabelValues("h").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.handlerFailures.WithLabelValues("h")))
}
