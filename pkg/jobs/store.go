package jobs

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable job queue. Implementations must guarantee:
//
//   - Enqueue is idempotent per (kind, target): while a non-terminal job
//     exists for the pair, enqueues return it instead of creating another.
//   - Claim hands each due job to exactly one worker, stamping a lease.
//     A running job whose lease expired is claimable again.
//   - Complete and Fail are lease-checked: a worker that lost its lease
//     cannot finalize the job.
type Store interface {
	// Enqueue creates a job or coalesces onto the active one for the same
	// (kind, target). The second return is true when a new job was created.
	// Coalescing onto a live job whose payload differs byte-for-byte returns
	// apperrors.ErrAlreadyInProgress instead of silently dropping the new
	// payload.
	Enqueue(ctx context.Context, kind, target string, payload []byte, maxAttempts int) (*Job, bool, error)

	// Get returns a job by id, or apperrors.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Job, error)

	// Claim atomically takes the next due job for the holder, incrementing
	// its attempt count and stamping a lease. Returns nil when nothing is due.
	Claim(ctx context.Context, holder string, leaseTTL time.Duration) (*Job, error)

	// Complete finalizes a running job as succeeded. Returns
	// apperrors.ErrLeaseHeld when the holder no longer owns the lease.
	Complete(ctx context.Context, id uuid.UUID, holder string, result []byte) error

	// Fail records a failed attempt. When terminal is true the job moves to
	// failed; otherwise it moves to retrying with the given next run time.
	Fail(ctx context.Context, id uuid.UUID, holder, lastError string, nextRunAt time.Time, terminal bool) error
}

// samePayload compares payloads byte-for-byte, with nil and empty both
// meaning the default empty document.
func samePayload(a, b []byte) bool {
	if len(a) == 0 {
		a = []byte("{}")
	}
	if len(b) == 0 {
		b = []byte("{}")
	}
	return bytes.Equal(a, b)
}
