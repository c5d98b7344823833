package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunAllCollectsSamples(t *testing.T) {
	probes := []Probe{
		ProbeFunc{ProbeName: "up", Fn: func(ctx context.Context) (bool, time.Duration) {
			return true, 5 * time.Millisecond
		}},
		ProbeFunc{ProbeName: "down", Fn: func(ctx context.Context) (bool, time.Duration) {
			return false, 2 * time.Millisecond
		}},
	}

	runner := NewRunner(probes, time.Second, 2, zap.NewNop())
	samples := runner.RunAll(context.Background())

	require.Len(t, samples, 2)
	assert.Equal(t, "up", samples[0].Dependency)
	assert.True(t, samples[0].OK)
	assert.Equal(t, "down", samples[1].Dependency)
	assert.False(t, samples[1].OK)
	assert.False(t, samples[0].SampledAt.IsZero())
}

func TestRunOneEnforcesTimeout(t *testing.T) {
	timeout := 20 * time.Millisecond
	slow := ProbeFunc{ProbeName: "slow", Fn: func(ctx context.Context) (bool, time.Duration) {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return true, time.Second
	}}

	runner := NewRunner([]Probe{slow}, timeout, 1, zap.NewNop())

	start := time.Now()
	samples := runner.RunAll(context.Background())
	elapsed := time.Since(start)

	require.Len(t, samples, 1)
	assert.False(t, samples[0].OK, "timed-out probe is recorded as failed")
	assert.Equal(t, timeout, samples[0].Latency)
	assert.Less(t, elapsed, 500*time.Millisecond, "aggregate must not block past the timeout")
}

func TestRunOneRecoversPanic(t *testing.T) {
	panicky := ProbeFunc{ProbeName: "boom", Fn: func(ctx context.Context) (bool, time.Duration) {
		panic("probe exploded")
	}}

	runner := NewRunner([]Probe{panicky}, time.Second, 1, zap.NewNop())
	samples := runner.RunAll(context.Background())

	require.Len(t, samples, 1)
	assert.False(t, samples[0].OK, "a panicking probe is a failed probe, not a crash")
}

func TestRunAllBoundsConcurrency(t *testing.T) {
	const probeCount = 8
	const maxConcurrent = 2

	var mu sync.Mutex
	current, peak := 0, 0

	var probes []Probe
	for i := 0; i < probeCount; i++ {
		probes = append(probes, ProbeFunc{ProbeName: "p", Fn: func(ctx context.Context) (bool, time.Duration) {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
			return true, time.Millisecond
		}})
	}

	runner := NewRunner(probes, time.Second, maxConcurrent, zap.NewNop())
	samples := runner.RunAll(context.Background())

	require.Len(t, samples, probeCount)
	assert.LessOrEqual(t, peak, maxConcurrent)
}
