package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitDelaysSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://api.lever.co/v0/postings/netflix"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://api.lever.co/v0/postings/stripe"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterDifferentHostsIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterHostOverrideAndCancel(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0, HostRPS: map[string]float64{"Slow.Example": 0.01}})
	ctx := context.Background()

	// Unlimited by default.
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(ctx, "https://fast.example/x"))
	}

	require.NoError(t, l.Wait(ctx, "https://slow.example/x"))
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(cctx, "https://slow.example/y"))
}

func TestNilLimiterNeverWaits(t *testing.T) {
	t.Parallel()

	var l *Limiter
	require.NoError(t, l.Wait(context.Background(), "https://x.example"))
}
