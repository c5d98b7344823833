package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Thresholds map a score to an operational mode. Score >= Full selects
// FULL_OPERATIONAL, and so on down; below Config is EMERGENCY.
type Thresholds struct {
	Full     float64
	Limited  float64
	ReadOnly float64
	Config   float64
}

// ModeFor returns the mode a score maps to, before hysteresis.
func (t Thresholds) ModeFor(score float64) OperationalMode {
	switch {
	case score >= t.Full:
		return ModeFullOperational
	case score >= t.Limited:
		return ModeLimitedGeneration
	case score >= t.ReadOnly:
		return ModeReadOnly
	case score >= t.Config:
		return ModeConfiguration
	default:
		return ModeEmergency
	}
}

// jobFailurePenalty is deducted from the score per job kind whose most
// recent terminal outcome was a failure (a failed backup degrades health).
const jobFailurePenalty = 10.0

// maxJobPenalty caps the total deduction from failed jobs.
const maxJobPenalty = 30.0

// upwardHoldTicks is how many consecutive ticks an improved score must hold
// before an upward mode transition takes effect.
const upwardHoldTicks = 2

// Supervisor is the single source of truth for "is it safe to do X right
// now". It probes all dependencies each tick, computes the weighted score,
// applies mode hysteresis, and publishes an immutable snapshot via atomic
// pointer swap. The supervisor itself never becomes unavailable: when it
// cannot compute, readers get EMERGENCY.
type Supervisor struct {
	runner     *Runner
	scorer     *Scorer
	thresholds Thresholds
	tick       time.Duration
	windowSize int
	logger     *zap.Logger

	// providersActive reports how many provider endpoints currently accept
	// traffic (circuit not open). Optional.
	providersActive func() int

	current atomic.Pointer[Score]

	// Tick-loop state, touched only from the Run goroutine (or Tick in tests).
	windows        map[string][]Sample
	mode           OperationalMode
	pendingUpMode  OperationalMode
	pendingUpTicks int

	// Job outcome feedback, reported by the orchestrator.
	jobMu       sync.Mutex
	failedKinds map[string]bool
}

// SupervisorConfig holds supervisor construction parameters.
type SupervisorConfig struct {
	Thresholds   Thresholds
	TickInterval time.Duration
	WindowSize   int
}

// NewSupervisor creates a supervisor. Call Run to start the tick loop.
func NewSupervisor(runner *Runner, scorer *Scorer, cfg SupervisorConfig, logger *zap.Logger) *Supervisor {
	windowSize := cfg.WindowSize
	if windowSize < 1 {
		windowSize = 10
	}
	return &Supervisor{
		runner:      runner,
		scorer:      scorer,
		thresholds:  cfg.Thresholds,
		tick:        cfg.TickInterval,
		windowSize:  windowSize,
		logger:      logger.Named("health"),
		windows:     make(map[string][]Sample),
		mode:        ModeEmergency,
		failedKinds: make(map[string]bool),
	}
}

// SetProvidersActive wires the adapter's live-endpoint counter into the
// published snapshot. Must be called before Run.
func (s *Supervisor) SetProvidersActive(fn func() int) {
	s.providersActive = fn
}

// Run executes the tick loop until the context is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	s.Tick(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one probe-score-publish cycle. Exported so tests can drive the
// supervisor with scripted sample sequences.
func (s *Supervisor) Tick(ctx context.Context) {
	samples := s.runner.RunAll(ctx)
	s.Observe(samples)
}

// Observe folds a set of samples into the rolling windows, recomputes the
// score, applies hysteresis, and publishes the new snapshot.
func (s *Supervisor) Observe(samples []Sample) {
	for _, sample := range samples {
		window := append(s.windows[sample.Dependency], sample)
		if len(window) > s.windowSize {
			window = window[len(window)-s.windowSize:]
		}
		s.windows[sample.Dependency] = window
	}

	score := s.scorer.Compute(samples, s.windows)
	score.Score -= s.jobPenalty()
	if score.Score < 0 {
		score.Score = 0
	}

	target := s.thresholds.ModeFor(score.Score)
	mode := s.applyHysteresis(target)

	score.Mode = mode
	score.ModeName = mode.String()
	if s.providersActive != nil {
		score.ProvidersActive = s.providersActive()
	}

	prev := s.current.Load()
	s.current.Store(score)

	if prev == nil || prev.Mode != mode {
		s.logger.Info("operational mode changed",
			zap.Float64("score", score.Score),
			zap.String("mode", mode.String()))
	} else {
		s.logger.Debug("health tick",
			zap.Float64("score", score.Score),
			zap.String("mode", mode.String()))
	}
}

// applyHysteresis gates upward transitions behind two consecutive ticks at
// the improved level; downward transitions take effect immediately.
func (s *Supervisor) applyHysteresis(target OperationalMode) OperationalMode {
	switch {
	case target == s.mode:
		s.pendingUpTicks = 0
	case target < s.mode:
		// Degrading: switch at once.
		s.mode = target
		s.pendingUpTicks = 0
	default:
		if s.pendingUpMode == target {
			s.pendingUpTicks++
		} else {
			s.pendingUpMode = target
			s.pendingUpTicks = 1
		}
		if s.pendingUpTicks >= upwardHoldTicks {
			s.mode = target
			s.pendingUpTicks = 0
		}
	}
	return s.mode
}

// Current returns the last published snapshot without blocking. If no
// snapshot exists yet, or the newest one is older than three tick intervals,
// an EMERGENCY snapshot is returned instead of stale data.
func (s *Supervisor) Current() *Score {
	score := s.current.Load()
	if score == nil {
		return &Score{
			Mode:       ModeEmergency,
			ModeName:   ModeEmergency.String(),
			ComputedAt: time.Now(),
		}
	}

	if time.Since(score.ComputedAt) > 3*s.tick {
		stale := *score
		stale.Mode = ModeEmergency
		stale.ModeName = ModeEmergency.String()
		return &stale
	}

	return score
}

// Mode returns the current operational mode.
func (s *Supervisor) Mode() OperationalMode {
	return s.Current().Mode
}

// RecordJobOutcome is called by the job orchestrator when a job reaches a
// terminal state. A kind whose most recent terminal job failed keeps
// degrading the score until a later job of that kind succeeds.
func (s *Supervisor) RecordJobOutcome(kind string, succeeded bool) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if succeeded {
		delete(s.failedKinds, kind)
	} else {
		s.failedKinds[kind] = true
	}
}

func (s *Supervisor) jobPenalty() float64 {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	penalty := jobFailurePenalty * float64(len(s.failedKinds))
	if penalty > maxJobPenalty {
		penalty = maxJobPenalty
	}
	return penalty
}
