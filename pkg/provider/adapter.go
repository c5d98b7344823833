package provider

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/apperrors"
	"github.com/querylens-ai/querylens-engine/pkg/health"
)

// ModeSource reports the current operational mode. The health supervisor
// implements this.
type ModeSource interface {
	Mode() health.OperationalMode
}

// Adapter fronts the ranked endpoint chain. Every generation request walks
// the endpoints in priority order, skipping open circuits, until one
// succeeds or the chain is exhausted.
type Adapter struct {
	endpoints []*Endpoint
	modes     ModeSource
	stats     *Stats
	logger    *zap.Logger
}

// NewAdapter creates an adapter over the given endpoints, sorted by priority.
func NewAdapter(endpoints []*Endpoint, modes ModeSource, logger *zap.Logger) *Adapter {
	sorted := make([]*Endpoint, len(endpoints))
	copy(sorted, endpoints)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})

	return &Adapter{
		endpoints: sorted,
		modes:     modes,
		stats:     NewStats(),
		logger:    logger.Named("provider"),
	}
}

// Generate produces SQL for the request, failing over across endpoints.
//
// The operational mode is checked before any endpoint is touched; when the
// mode forbids generation the request fails fast without consuming model
// capacity. Caller cancellation aborts the walk without charging the current
// endpoint's breaker, since the endpoint did nothing wrong.
func (a *Adapter) Generate(ctx context.Context, req Request) (*Result, error) {
	if !a.modes.Mode().AllowsGeneration() {
		return nil, apperrors.New(apperrors.KindGenerationDisabled,
			"generation is disabled in the current operational mode", false)
	}

	var lastErr error
	for _, ep := range a.endpoints {
		allowed, reason := ep.breaker.Allow()
		if !allowed {
			a.logger.Debug("skipping endpoint",
				zap.String("endpoint", ep.id),
				zap.Error(reason))
			continue
		}

		start := time.Now()
		result, err := ep.generate(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			ep.breaker.RecordSuccess()
			a.stats.Record(true, elapsed)
			a.logger.Info("generation succeeded",
				zap.String("endpoint", ep.id),
				zap.String("model", result.Model),
				zap.Duration("elapsed", elapsed))
			return result, nil
		}

		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// The caller gave up. Not the endpoint's fault: release any
			// half-open trial slot so the breaker is not left waiting for
			// a verdict that will never come.
			ep.breaker.CancelTrial()
			return nil, apperrors.Wrap(apperrors.KindRequestCancelled,
				"generation abandoned by caller", false, err)
		}

		ep.breaker.RecordFailure()
		a.stats.Record(false, elapsed)
		a.logger.Warn("endpoint attempt failed",
			zap.String("endpoint", ep.id),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		lastErr = err
	}

	return nil, apperrors.Wrap(apperrors.KindAllProvidersExhausted,
		"every endpoint was unavailable or failed", true, lastErr)
}

// ActiveEndpoints counts endpoints whose circuit currently admits traffic.
// The health supervisor publishes this in its snapshot.
func (a *Adapter) ActiveEndpoints() int {
	active := 0
	for _, ep := range a.endpoints {
		if ep.breaker.State() != CircuitOpen {
			active++
		}
	}
	return active
}

// EndpointStates reports each endpoint's circuit state, in priority order.
func (a *Adapter) EndpointStates() map[string]string {
	states := make(map[string]string, len(a.endpoints))
	for _, ep := range a.endpoints {
		states[ep.id] = ep.breaker.State().String()
	}
	return states
}

// Probe returns the health probe for the provider dependency. It reads the
// adapter's own attempt stats and circuit states rather than spending model
// quota on synthetic calls.
func (a *Adapter) Probe() health.Probe {
	return health.ProbeFunc{
		ProbeName: health.DependencyProvider,
		Fn: func(ctx context.Context) (bool, time.Duration) {
			successes, failures, meanLatency := a.stats.Recent()

			if a.ActiveEndpoints() == 0 {
				return false, meanLatency
			}
			// Traffic flowed recently and none of it succeeded.
			if failures > 0 && successes == 0 {
				return false, meanLatency
			}
			return true, meanLatency
		},
	}
}
