package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/querylens-ai/querylens-engine/pkg/apperrors"
	"github.com/querylens-ai/querylens-engine/pkg/database"
)

const jobColumns = `id, kind, target, state, attempt_count, max_attempts,
	payload, result, COALESCE(last_error, ''), COALESCE(lease_holder, ''),
	lease_expires, next_run_at, created_at, updated_at`

// PostgresStore is the durable job store. Claim uses FOR UPDATE SKIP LOCKED
// so concurrent workers never contend on the same row; finalization is
// compare-and-swapped on (id, lease_holder, state).
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a job store backed by PostgreSQL.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Enqueue inserts a job, coalescing onto the live job for (kind, target) if
// one exists. The partial unique index makes the race with a concurrent
// enqueue safe: the loser's insert conflicts and reads the winner's row.
func (s *PostgresStore) Enqueue(ctx context.Context, kind, target string, payload []byte, maxAttempts int) (*Job, bool, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO jobs (id, kind, target, payload, max_attempts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, target) WHERE state IN ('queued', 'running', 'retrying')
		DO NOTHING
		RETURNING `+jobColumns,
		uuid.New(), kind, target, payload, maxAttempts)

	job, err := scanJob(row)
	if err == nil {
		return job, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to enqueue job: %w", err)
	}

	// Conflict: hand back the live job for this target.
	row = s.db.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE kind = $1 AND target = $2 AND state IN ('queued', 'running', 'retrying')`,
		kind, target)
	job, err = scanJob(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read coalesced job: %w", err)
	}
	if !samePayload(job.Payload, payload) {
		return nil, false, apperrors.ErrAlreadyInProgress
	}
	return job, false, nil
}

// Get returns a job by id.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Claim takes the next due job: queued or retrying past next_run_at, or
// running with an expired lease (its worker died mid-flight).
func (s *PostgresStore) Claim(ctx context.Context, holder string, leaseTTL time.Duration) (*Job, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE jobs
		SET state = 'running',
		    lease_holder = $1,
		    lease_expires = now() + $2,
		    attempt_count = attempt_count + 1,
		    updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE (state IN ('queued', 'retrying') AND next_run_at <= now())
			   OR (state = 'running' AND lease_expires < now())
			ORDER BY next_run_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		holder, leaseTTL)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// Complete finalizes a running job as succeeded, lease-checked.
func (s *PostgresStore) Complete(ctx context.Context, id uuid.UUID, holder string, result []byte) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET state = 'succeeded', result = $3, last_error = NULL,
		    lease_holder = NULL, lease_expires = NULL, updated_at = now()
		WHERE id = $1 AND lease_holder = $2 AND state = 'running'`,
		id, holder, result)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrLeaseHeld
	}
	return nil
}

// Fail records a failed attempt, either scheduling a retry or finalizing.
func (s *PostgresStore) Fail(ctx context.Context, id uuid.UUID, holder, lastError string, nextRunAt time.Time, terminal bool) error {
	state := StateRetrying
	if terminal {
		state = StateFailed
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET state = $3, last_error = $4, next_run_at = $5,
		    lease_holder = NULL, lease_expires = NULL, updated_at = now()
		WHERE id = $1 AND lease_holder = $2 AND state = 'running'`,
		id, holder, state, lastError, nextRunAt)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrLeaseHeld
	}
	return nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Kind, &j.Target, &j.State, &j.AttemptCount, &j.MaxAttempts,
		&j.Payload, &j.Result, &j.LastError, &j.LeaseHolder,
		&j.LeaseExpires, &j.NextRunAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
