// Package jobs implements the durable background job queue: idempotent
// enqueue, lease-based exclusive execution, and retry with exponential
// backoff.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State is a job's lifecycle state.
type State string

const (
	// StateQueued means the job is waiting for a worker.
	StateQueued State = "queued"
	// StateRunning means a worker holds the lease and is executing.
	StateRunning State = "running"
	// StateRetrying means a failed attempt is waiting out its backoff.
	StateRetrying State = "retrying"
	// StateSucceeded is terminal success.
	StateSucceeded State = "succeeded"
	// StateFailed is terminal failure after max attempts.
	StateFailed State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Known job kinds. Runners register per kind; unknown kinds fail terminally.
const (
	KindBackup  = "backup"
	KindRestore = "restore"
	KindRetrain = "retrain"
)

// Job is one durable unit of background work. At most one non-terminal job
// exists per (kind, target) pair; re-enqueues coalesce onto it.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	Kind         string          `json:"kind"`
	Target       string          `json:"target"`
	State        State           `json:"state"`
	AttemptCount int             `json:"attempt_count"`
	MaxAttempts  int             `json:"max_attempts"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	LeaseHolder  string          `json:"lease_holder,omitempty"`
	LeaseExpires *time.Time      `json:"lease_expires,omitempty"`
	NextRunAt    time.Time       `json:"next_run_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
