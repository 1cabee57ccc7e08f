package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProvidersWithoutProject(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p, err := newProviders(context.Background(), Config{ServiceName: "test", Registerer: reg})
	require.NoError(t, err)
	require.NotNil(t, p.Tracer)
	require.NotNil(t, p.Meter)

	counter, err := p.Meter.Meter("test").Int64Counter("probe_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	t.Parallel()

	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(0).Description())
	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1.5).Description())
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestNilProvidersShutdown(t *testing.T) {
	t.Parallel()

	var p *Providers
	require.NoError(t, p.Shutdown(context.Background()))
}
