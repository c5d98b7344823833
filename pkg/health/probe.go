package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sample is one probe result. Samples are ephemeral: they live only in the
// supervisor's rolling window and are never persisted.
type Sample struct {
	Dependency string
	OK         bool
	Latency    time.Duration
	SampledAt  time.Time
}

// Probe is a cheap, timeout-bounded check against one downstream dependency.
// Implementations measure their own call latency; the runner enforces the
// hard timeout and converts panics into failed samples.
type Probe interface {
	Name() string
	Check(ctx context.Context) (ok bool, latency time.Duration)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) (bool, time.Duration)
}

func (p ProbeFunc) Name() string { return p.ProbeName }

func (p ProbeFunc) Check(ctx context.Context) (bool, time.Duration) { return p.Fn(ctx) }

// Runner executes a set of probes concurrently with bounded parallelism and
// a hard per-probe timeout. A probe that panics or outlives its timeout is
// recorded as failed with latency equal to the timeout; it never blocks the
// aggregate beyond the timeout.
type Runner struct {
	probes        []Probe
	timeout       time.Duration
	maxConcurrent int
	logger        *zap.Logger
}

// NewRunner creates a probe runner.
func NewRunner(probes []Probe, timeout time.Duration, maxConcurrent int, logger *zap.Logger) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}
	return &Runner{
		probes:        probes,
		timeout:       timeout,
		maxConcurrent: maxConcurrent,
		logger:        logger.Named("probes"),
	}
}

// RunAll checks every registered probe and returns one sample each.
func (r *Runner) RunAll(ctx context.Context) []Sample {
	samples := make([]Sample, len(r.probes))
	sem := make(chan struct{}, r.maxConcurrent)

	var wg sync.WaitGroup
	for i, probe := range r.probes {
		wg.Add(1)
		go func(i int, probe Probe) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			samples[i] = r.runOne(ctx, probe)
		}(i, probe)
	}
	wg.Wait()

	return samples
}

type probeOutcome struct {
	ok      bool
	latency time.Duration
}

// runOne executes a single probe under the hard timeout.
func (r *Runner) runOne(ctx context.Context, probe Probe) Sample {
	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	outcome := make(chan probeOutcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("probe panicked",
					zap.String("dependency", probe.Name()),
					zap.Any("panic", rec))
				outcome <- probeOutcome{ok: false, latency: r.timeout}
			}
		}()
		ok, latency := probe.Check(probeCtx)
		outcome <- probeOutcome{ok: ok, latency: latency}
	}()

	sample := Sample{
		Dependency: probe.Name(),
		SampledAt:  time.Now(),
	}

	select {
	case o := <-outcome:
		sample.OK = o.ok
		sample.Latency = o.latency
	case <-probeCtx.Done():
		// Timed out or cancelled: recorded as failed, the goroutine is
		// abandoned (its buffered send cannot block).
		sample.OK = false
		sample.Latency = r.timeout
	}

	return sample
}
