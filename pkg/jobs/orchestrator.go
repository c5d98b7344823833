package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/apperrors"
)

// Runner executes one job kind. Run must respect the context: it is
// cancelled when the lease window closes, and a runner that outlives its
// lease loses the right to finalize the job.
type Runner interface {
	Kind() string
	Run(ctx context.Context, job *Job) (result []byte, err error)
}

// OutcomeRecorder receives terminal job outcomes. The health supervisor
// implements this: a failed backup is a health problem, not just a log line.
type OutcomeRecorder interface {
	RecordJobOutcome(kind string, succeeded bool)
}

// Config holds orchestrator tuning.
type Config struct {
	Workers     int
	LeaseTTL    time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	PollEvery   time.Duration
}

// Orchestrator runs the worker pool over the durable store. Each worker
// claims one job at a time under a lease; a worker that dies simply lets the
// lease expire and another worker reclaims the job.
type Orchestrator struct {
	store    Store
	runners  map[string]Runner
	cfg      Config
	outcomes OutcomeRecorder
	logger   *zap.Logger
	instance string
}

// NewOrchestrator creates an orchestrator. Register runners before Run.
func NewOrchestrator(store Store, cfg Config, outcomes OutcomeRecorder, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		runners:  make(map[string]Runner),
		cfg:      cfg,
		outcomes: outcomes,
		logger:   logger.Named("jobs"),
		instance: uuid.New().String()[:8],
	}
}

// Register adds a runner for its kind. Last registration wins.
func (o *Orchestrator) Register(r Runner) {
	o.runners[r.Kind()] = r
}

// Enqueue submits a job, coalescing onto any live job for the same
// (kind, target). The second return is false when the returned job is an
// existing one the submission coalesced onto.
func (o *Orchestrator) Enqueue(ctx context.Context, kind, target string, payload []byte) (*Job, bool, error) {
	if _, ok := o.runners[kind]; !ok {
		return nil, false, apperrors.New(apperrors.KindQueueUnavailable,
			fmt.Sprintf("no runner registered for job kind %q", kind), false)
	}

	job, created, err := o.store.Enqueue(ctx, kind, target, payload, o.cfg.MaxAttempts)
	if errors.Is(err, apperrors.ErrAlreadyInProgress) {
		return nil, false, err
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.KindQueueUnavailable,
			"job storage refused the enqueue", true, err)
	}

	if created {
		o.logger.Info("job enqueued",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", kind),
			zap.String("target", target))
	} else {
		o.logger.Debug("enqueue coalesced onto live job",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", kind),
			zap.String("target", target))
	}
	return job, created, nil
}

// Get returns a job by id.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	return o.store.Get(ctx, id)
}

// Run starts the worker pool and blocks until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		holder := fmt.Sprintf("%s-w%d", o.instance, i)
		go func() {
			defer wg.Done()
			o.workerLoop(ctx, holder)
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) workerLoop(ctx context.Context, holder string) {
	ticker := time.NewTicker(o.cfg.PollEvery)
	defer ticker.Stop()

	for {
		// Drain all due work before going back to sleep.
		for {
			if ctx.Err() != nil {
				return
			}
			claimed, err := o.claimAndExecute(ctx, holder)
			if err != nil {
				o.logger.Warn("claim failed", zap.String("worker", holder), zap.Error(err))
				break
			}
			if !claimed {
				break
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// claimAndExecute claims one due job and runs it to an attempt outcome.
// Returns false when no job was due.
func (o *Orchestrator) claimAndExecute(ctx context.Context, holder string) (bool, error) {
	job, err := o.store.Claim(ctx, holder, o.cfg.LeaseTTL)
	if err != nil || job == nil {
		return false, err
	}

	o.Execute(ctx, holder, job)
	return true, nil
}

// Execute runs one claimed job attempt. Exported so tests can drive the
// orchestrator without the polling loop.
func (o *Orchestrator) Execute(ctx context.Context, holder string, job *Job) {
	logger := o.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("kind", job.Kind),
		zap.String("target", job.Target),
		zap.Int("attempt", job.AttemptCount),
		zap.String("worker", holder))

	runner, ok := o.runners[job.Kind]
	if !ok {
		logger.Error("no runner for job kind")
		o.finalize(ctx, holder, job, "no runner registered for kind", fmt.Errorf("unknown kind"))
		return
	}

	// The lease window bounds the attempt. A runner that needs longer has
	// lost exclusivity anyway.
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.LeaseTTL)
	defer cancel()

	start := time.Now()
	result, runErr := runner.Run(attemptCtx, job)
	elapsed := time.Since(start)

	if runErr == nil {
		if err := o.store.Complete(ctx, job.ID, holder, result); err != nil {
			logger.Warn("could not finalize job, lease lost", zap.Error(err))
			return
		}
		logger.Info("job succeeded", zap.Duration("elapsed", elapsed))
		o.recordOutcome(job.Kind, true)
		return
	}

	logger.Warn("job attempt failed", zap.Duration("elapsed", elapsed), zap.Error(runErr))
	o.finalize(ctx, holder, job, runErr.Error(), runErr)
}

// finalize routes a failed attempt to retry or terminal failure.
func (o *Orchestrator) finalize(ctx context.Context, holder string, job *Job, msg string, cause error) {
	terminal := job.AttemptCount >= job.MaxAttempts
	nextRun := time.Now()
	if !terminal {
		// Claim already counted the attempt that just failed, so the first
		// retry waits the base delay, the second double that, and so on.
		nextRun = nextRun.Add(o.Backoff(job.AttemptCount - 1))
	}

	if err := o.store.Fail(ctx, job.ID, holder, msg, nextRun, terminal); err != nil {
		o.logger.Warn("could not record job failure, lease lost",
			zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}

	if terminal {
		o.logger.Error("job exhausted all attempts",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", job.Kind),
			zap.Int("attempts", job.AttemptCount),
			zap.Error(cause))
		o.recordOutcome(job.Kind, false)
	}
}

// Backoff returns the retry delay after n prior failed attempts:
// base * 2^n, capped. Backoff(0) is the delay before the first retry.
func (o *Orchestrator) Backoff(priorFailures int) time.Duration {
	delay := o.cfg.BackoffBase
	for i := 0; i < priorFailures; i++ {
		delay *= 2
		if delay >= o.cfg.BackoffCap {
			return o.cfg.BackoffCap
		}
	}
	return delay
}

func (o *Orchestrator) recordOutcome(kind string, succeeded bool) {
	if o.outcomes != nil {
		o.outcomes.RecordJobOutcome(kind, succeeded)
	}
}
