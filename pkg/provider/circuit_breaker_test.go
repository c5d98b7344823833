package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker() *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:   3,
		Cooldown:    50 * time.Millisecond,
		CooldownMax: 200 * time.Millisecond,
	})
}

func TestBreakerStartsClosed(t *testing.T) {
	cb := newTestBreaker()
	assert.Equal(t, CircuitClosed, cb.State())

	allowed, err := cb.Allow()
	assert.True(t, allowed)
	assert.NoError(t, err)
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	cb := newTestBreaker()

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State(), "below threshold stays closed")

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	allowed, err := cb.Allow()
	assert.False(t, allowed)
	assert.Error(t, err)
}

func TestBreakerAdmitsSingleHalfOpenTrial(t *testing.T) {
	cb := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, CircuitOpen, cb.State())

	time.Sleep(60 * time.Millisecond)

	allowed, err := cb.Allow()
	require.True(t, allowed, "cooldown elapsed, trial admitted")
	require.NoError(t, err)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Only one trial at a time.
	allowed, err = cb.Allow()
	assert.False(t, allowed)
	assert.Error(t, err)
}

func TestBreakerClosesOnTrialSuccess(t *testing.T) {
	cb := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)

	allowed, _ := cb.Allow()
	require.True(t, allowed)

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Zero(t, cb.ConsecutiveFailures())
	assert.Equal(t, 50*time.Millisecond, cb.CurrentCooldown(), "cooldown resets on recovery")
}

func TestBreakerDoublesCooldownOnTrialFailure(t *testing.T) {
	cb := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, 50*time.Millisecond, cb.CurrentCooldown())

	time.Sleep(60 * time.Millisecond)
	allowed, _ := cb.Allow()
	require.True(t, allowed)

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, 100*time.Millisecond, cb.CurrentCooldown())
}

func TestBreakerCapsCooldown(t *testing.T) {
	cb := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	// Fail three half-open trials: 50ms -> 100ms -> 200ms -> capped at 200ms.
	for i := 0; i < 3; i++ {
		time.Sleep(cb.CurrentCooldown() + 10*time.Millisecond)
		allowed, _ := cb.Allow()
		require.True(t, allowed, "trial %d should be admitted", i)
		cb.RecordFailure()
	}

	assert.Equal(t, 200*time.Millisecond, cb.CurrentCooldown())
}

func TestBreakerCancelledTrialDoesNotWedge(t *testing.T) {
	cb := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)

	allowed, _ := cb.Allow()
	require.True(t, allowed)
	require.Equal(t, CircuitHalfOpen, cb.State())

	// The trial ended without a verdict (caller cancelled). The circuit
	// reopens without penalty and a fresh trial is admitted immediately,
	// since the last real failure already aged past the cooldown.
	cb.CancelTrial()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, 50*time.Millisecond, cb.CurrentCooldown(), "a cancelled trial is not a failed one")

	allowed, err := cb.Allow()
	assert.True(t, allowed)
	assert.NoError(t, err)
}

func TestBreakerCancelTrialOutsideHalfOpenIsNoop(t *testing.T) {
	cb := newTestBreaker()

	cb.CancelTrial()
	assert.Equal(t, CircuitClosed, cb.State())

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	cb.CancelTrial()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, 3, cb.ConsecutiveFailures())
}

func TestBreakerNeverTripsForFallback(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:   1,
		Cooldown:    time.Minute,
		CooldownMax: time.Hour,
		NeverTrips:  true,
	})

	for i := 0; i < 20; i++ {
		cb.RecordFailure()
	}

	assert.Equal(t, CircuitClosed, cb.State())
	allowed, err := cb.Allow()
	assert.True(t, allowed)
	assert.NoError(t, err)
}

func TestBreakerReset(t *testing.T) {
	cb := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Zero(t, cb.ConsecutiveFailures())
}
