package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/querylens-ai/querylens-engine/pkg/apperrors"
)

// MemoryStore is an in-memory Store with the same semantics as the
// PostgreSQL implementation. Used in tests and by the orchestrator's own
// unit coverage.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*Job),
		now:  time.Now,
	}
}

// SetClock overrides the store's clock for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Enqueue creates a job or coalesces onto the live one for (kind, target).
func (s *MemoryStore) Enqueue(ctx context.Context, kind, target string, payload []byte, maxAttempts int) (*Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.Kind == kind && j.Target == target && !j.State.Terminal() {
			if !samePayload(j.Payload, payload) {
				return nil, false, apperrors.ErrAlreadyInProgress
			}
			return copyJob(j), false, nil
		}
	}

	now := s.now()
	j := &Job{
		ID:          uuid.New(),
		Kind:        kind,
		Target:      target,
		State:       StateQueued,
		MaxAttempts: maxAttempts,
		Payload:     payload,
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.jobs[j.ID] = j
	return copyJob(j), true, nil
}

// Get returns a job by id.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyJob(j), nil
}

// Claim takes the next due job, including running jobs with expired leases.
func (s *MemoryStore) Claim(ctx context.Context, holder string, leaseTTL time.Duration) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []*Job
	for _, j := range s.jobs {
		switch {
		case (j.State == StateQueued || j.State == StateRetrying) && !j.NextRunAt.After(now):
			due = append(due, j)
		case j.State == StateRunning && j.LeaseExpires != nil && j.LeaseExpires.Before(now):
			due = append(due, j)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, k int) bool { return due[i].NextRunAt.Before(due[k].NextRunAt) })

	j := due[0]
	expires := now.Add(leaseTTL)
	j.State = StateRunning
	j.LeaseHolder = holder
	j.LeaseExpires = &expires
	j.AttemptCount++
	j.UpdatedAt = now
	return copyJob(j), nil
}

// Complete finalizes a running job as succeeded, lease-checked.
func (s *MemoryStore) Complete(ctx context.Context, id uuid.UUID, holder string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.State != StateRunning || j.LeaseHolder != holder {
		return apperrors.ErrLeaseHeld
	}
	j.State = StateSucceeded
	j.Result = result
	j.LastError = ""
	j.LeaseHolder = ""
	j.LeaseExpires = nil
	j.UpdatedAt = s.now()
	return nil
}

// Fail records a failed attempt, lease-checked.
func (s *MemoryStore) Fail(ctx context.Context, id uuid.UUID, holder, lastError string, nextRunAt time.Time, terminal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.State != StateRunning || j.LeaseHolder != holder {
		return apperrors.ErrLeaseHeld
	}
	if terminal {
		j.State = StateFailed
	} else {
		j.State = StateRetrying
	}
	j.LastError = lastError
	j.NextRunAt = nextRunAt
	j.LeaseHolder = ""
	j.LeaseExpires = nil
	j.UpdatedAt = s.now()
	return nil
}

func copyJob(j *Job) *Job {
	out := *j
	if j.LeaseExpires != nil {
		t := *j.LeaseExpires
		out.LeaseExpires = &t
	}
	return &out
}
