package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/apperrors"
)

// scriptedRunner fails a configured number of attempts, then succeeds.
type scriptedRunner struct {
	kind      string
	failFirst int
	mu        sync.Mutex
	calls     int
}

func (r *scriptedRunner) Kind() string { return r.kind }

func (r *scriptedRunner) Run(ctx context.Context, job *Job) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failFirst {
		return nil, errors.New("transient failure")
	}
	return []byte(`{"ok":true}`), nil
}

type outcomeSink struct {
	mu       sync.Mutex
	outcomes []bool
}

func (s *outcomeSink) RecordJobOutcome(kind string, succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, succeeded)
}

func (s *outcomeSink) all() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.outcomes...)
}

func testConfig() Config {
	return Config{
		Workers:     1,
		LeaseTTL:    time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffCap:  10 * time.Millisecond,
		PollEvery:   5 * time.Millisecond,
	}
}

func newTestOrchestrator(t *testing.T, runner Runner, sink OutcomeRecorder) (*Orchestrator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	o := NewOrchestrator(store, testConfig(), sink, zap.NewNop())
	if runner != nil {
		o.Register(runner)
	}
	return o, store
}

// runDueJobs drives the claim/execute cycle without the polling loop,
// waiting out retry backoffs between passes.
func runDueJobs(t *testing.T, o *Orchestrator, store *MemoryStore) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		job, err := store.Claim(ctx, "test-worker", time.Second)
		require.NoError(t, err)
		if job == nil {
			time.Sleep(5 * time.Millisecond)
			job, err = store.Claim(ctx, "test-worker", time.Second)
			require.NoError(t, err)
			if job == nil {
				return
			}
		}
		o.Execute(ctx, "test-worker", job)
	}
}

func TestJobSucceedsOnThirdAttempt(t *testing.T) {
	runner := &scriptedRunner{kind: KindBackup, failFirst: 2}
	sink := &outcomeSink{}
	o, store := newTestOrchestrator(t, runner, sink)

	job, _, err := o.Enqueue(context.Background(), KindBackup, "policy_rules", nil)
	require.NoError(t, err)

	runDueJobs(t, o, store)

	final, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, final.State)
	assert.Equal(t, 3, final.AttemptCount)
	assert.Equal(t, []bool{true}, sink.all())
}

func TestJobFailsTerminallyAfterMaxAttempts(t *testing.T) {
	runner := &scriptedRunner{kind: KindBackup, failFirst: 10}
	sink := &outcomeSink{}
	o, store := newTestOrchestrator(t, runner, sink)

	job, _, err := o.Enqueue(context.Background(), KindBackup, "policy_rules", nil)
	require.NoError(t, err)

	runDueJobs(t, o, store)

	final, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, final.State)
	assert.Equal(t, 3, final.AttemptCount)
	assert.Equal(t, "transient failure", final.LastError)
	assert.Equal(t, []bool{false}, sink.all())
}

func TestEnqueueRejectsUnknownKind(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, nil)

	_, _, err := o.Enqueue(context.Background(), "defragment", "x", nil)

	require.Error(t, err)
	assert.Equal(t, apperrors.KindQueueUnavailable, apperrors.KindOf(err))
}

func TestEnqueueIsIdempotentPerTarget(t *testing.T) {
	runner := &scriptedRunner{kind: KindRetrain}
	o, _ := newTestOrchestrator(t, runner, nil)
	ctx := context.Background()

	first, created, err := o.Enqueue(ctx, KindRetrain, "schema", nil)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := o.Enqueue(ctx, KindRetrain, "schema", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	o := NewOrchestrator(NewMemoryStore(), Config{
		BackoffBase: 2 * time.Second,
		BackoffCap:  5 * time.Minute,
	}, nil, zap.NewNop())

	assert.Equal(t, 2*time.Second, o.Backoff(0), "first retry waits the base delay")
	assert.Equal(t, 4*time.Second, o.Backoff(1))
	assert.Equal(t, 8*time.Second, o.Backoff(2))
	assert.Equal(t, 5*time.Minute, o.Backoff(20))
}

func TestRetryDelaySequenceStartsAtBase(t *testing.T) {
	runner := &scriptedRunner{kind: KindBackup, failFirst: 10}
	store := NewMemoryStore()
	cfg := testConfig()
	cfg.BackoffBase = 2 * time.Second
	cfg.BackoffCap = 5 * time.Minute
	o := NewOrchestrator(store, cfg, nil, zap.NewNop())
	o.Register(runner)
	ctx := context.Background()

	job, _, err := o.Enqueue(ctx, KindBackup, "policy_rules", nil)
	require.NoError(t, err)

	claimed, err := store.Claim(ctx, "w", time.Minute)
	require.NoError(t, err)
	o.Execute(ctx, "w", claimed)

	after, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StateRetrying, after.State)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), after.NextRunAt, 500*time.Millisecond,
		"delay after the first failed attempt is the base")

	// Jump the store clock past the backoff so the retry is claimable.
	store.SetClock(func() time.Time { return time.Now().Add(3 * time.Second) })
	claimed, err = store.Claim(ctx, "w", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	o.Execute(ctx, "w", claimed)

	after, err = store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StateRetrying, after.State)
	assert.WithinDuration(t, time.Now().Add(4*time.Second), after.NextRunAt, 500*time.Millisecond,
		"delay doubles after the second failed attempt")
}

func TestRunProcessesEnqueuedJobs(t *testing.T) {
	runner := &scriptedRunner{kind: KindRetrain}
	sink := &outcomeSink{}
	o, store := newTestOrchestrator(t, runner, sink)

	job, _, err := o.Enqueue(context.Background(), KindRetrain, "schema", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), job.ID)
		return err == nil && got.State == StateSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("orchestrator did not stop on cancellation")
	}
}
