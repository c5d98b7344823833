package provider

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit is operational and requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit has tripped due to failures and requests are blocked.
	CircuitOpen
	// CircuitHalfOpen means the circuit is testing if the endpoint has recovered.
	CircuitHalfOpen
)

// String returns a human-readable string for the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures before the circuit trips.
	Threshold int
	// Cooldown is the initial wait before a half-open trial is permitted.
	Cooldown time.Duration
	// CooldownMax caps the cooldown as it doubles on repeated failed trials.
	CooldownMax time.Duration
	// NeverTrips marks the designated fallback endpoint whose circuit must
	// always admit traffic.
	NeverTrips bool
}

// DefaultCircuitBreakerConfig returns sensible defaults for the circuit breaker.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:   5,
		Cooldown:    30 * time.Second,
		CooldownMax: 10 * time.Minute,
	}
}

// CircuitBreaker guards one provider endpoint. It trips open after N
// consecutive failures; after the cooldown, exactly one half-open trial is
// admitted. A successful trial closes the circuit; a failed trial reopens it
// with the cooldown doubled, up to CooldownMax.
type CircuitBreaker struct {
	mu               sync.RWMutex
	consecutiveFails int
	threshold        int
	baseCooldown     time.Duration
	cooldown         time.Duration
	cooldownMax      time.Duration
	lastFailure      time.Time
	state            CircuitState
	neverTrips       bool
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    config.Threshold,
		baseCooldown: config.Cooldown,
		cooldown:     config.Cooldown,
		cooldownMax:  config.CooldownMax,
		state:        CircuitClosed,
		neverTrips:   config.NeverTrips,
	}
}

// Allow returns true if the circuit breaker admits a request.
// In the open state it transitions to half-open once the cooldown elapses,
// admitting a single trial request.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true, nil
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.cooldown {
			cb.state = CircuitHalfOpen
			return true, nil
		}
		return false, fmt.Errorf("circuit open: endpoint failed %d times, last failure %v ago",
			cb.consecutiveFails, time.Since(cb.lastFailure).Round(time.Second))
	case CircuitHalfOpen:
		// The single trial request is already in flight.
		return false, fmt.Errorf("circuit half-open: trial request in flight")
	default:
		return false, fmt.Errorf("circuit in unknown state: %v", cb.state)
	}
}

// RecordSuccess closes the circuit and resets the failure count and cooldown.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
	cb.cooldown = cb.baseCooldown
}

// RecordFailure counts a failure, trips the circuit at the threshold, and
// doubles the cooldown when a half-open trial fails.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = time.Now()

	if cb.neverTrips {
		return
	}

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		cb.cooldown *= 2
		if cb.cooldown > cb.cooldownMax {
			cb.cooldown = cb.cooldownMax
		}
		return
	}

	if cb.consecutiveFails >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// CancelTrial releases a half-open trial that ended without a verdict, such
// as a caller-cancelled request. The circuit returns to open with the
// cooldown and failure count unchanged; the prior failure has already aged
// past the cooldown, so the next request may start a fresh trial at once.
func (cb *CircuitBreaker) CancelTrial() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// ConsecutiveFailures returns the current count of consecutive failures.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.consecutiveFails
}

// CurrentCooldown returns the cooldown currently in force.
func (cb *CircuitBreaker) CurrentCooldown() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.cooldown
}

// Reset manually closes the circuit. Intended for tests and manual
// operator intervention only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
	cb.cooldown = cb.baseCooldown
}
