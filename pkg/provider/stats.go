package provider

import (
	"sync"
	"time"
)

// statsWindow is how far back attempt samples count toward the health probe.
const statsWindow = 2 * time.Minute

type attempt struct {
	ok      bool
	latency time.Duration
	at      time.Time
}

// Stats aggregates recent attempt outcomes across all endpoints. The health
// supervisor's provider probe reads from here instead of making model calls
// of its own.
type Stats struct {
	mu       sync.Mutex
	attempts []attempt
}

// NewStats creates an empty attempt record.
func NewStats() *Stats {
	return &Stats{}
}

// Record stores one attempt outcome and drops samples older than the window.
func (s *Stats) Record(ok bool, latency time.Duration) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts = append(s.attempts, attempt{ok: ok, latency: latency, at: now})

	cutoff := now.Add(-statsWindow)
	firstFresh := 0
	for firstFresh < len(s.attempts) && s.attempts[firstFresh].at.Before(cutoff) {
		firstFresh++
	}
	s.attempts = s.attempts[firstFresh:]
}

// Recent returns the success count, failure count, and mean latency of
// successful attempts within the window.
func (s *Stats) Recent() (successes, failures int, meanLatency time.Duration) {
	cutoff := time.Now().Add(-statsWindow)

	s.mu.Lock()
	defer s.mu.Unlock()

	var totalLatency time.Duration
	for _, a := range s.attempts {
		if a.at.Before(cutoff) {
			continue
		}
		if a.ok {
			successes++
			totalLatency += a.latency
		} else {
			failures++
		}
	}
	if successes > 0 {
		meanLatency = totalLatency / time.Duration(successes)
	}
	return successes, failures, meanLatency
}
