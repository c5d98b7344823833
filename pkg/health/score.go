package health

import (
	"time"
)

// DependencyStatus is the per-dependency detail carried in a snapshot.
type DependencyStatus struct {
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Credit  float64       `json:"credit"` // 0..1 availability credit after smoothing
}

// Score is the derived health value published by the supervisor. It is
// immutable once published; readers always see a complete snapshot.
type Score struct {
	Score           float64                     `json:"score"` // 0..100
	Mode            OperationalMode             `json:"-"`
	ModeName        string                      `json:"mode"`
	ComputedAt      time.Time                   `json:"computed_at"`
	Weights         map[string]float64          `json:"contributing_weights"`
	Dependencies    map[string]DependencyStatus `json:"dependencies"`
	ProvidersActive int                         `json:"providers_active"`
}

// Scorer turns probe samples into a weighted health score.
type Scorer struct {
	weights    map[string]float64
	slaLatency time.Duration
}

// NewScorer creates a scorer. Weights must sum to 1.0 (config validation
// enforces this before the scorer is built).
func NewScorer(weights map[string]float64, slaLatency time.Duration) *Scorer {
	return &Scorer{
		weights:    weights,
		slaLatency: slaLatency,
	}
}

// credit returns the availability credit for one sample: full credit when ok
// within the SLA, linearly decayed to zero between SLA and 2x SLA, zero
// otherwise.
func (s *Scorer) credit(sample Sample) float64 {
	if !sample.OK {
		return 0
	}
	if sample.Latency <= s.slaLatency {
		return 1
	}
	if sample.Latency >= 2*s.slaLatency {
		return 0
	}
	over := float64(sample.Latency - s.slaLatency)
	return 1 - over/float64(s.slaLatency)
}

// Compute aggregates the latest samples (and each dependency's rolling
// window for smoothing) into a score. Dependencies with no sample this tick
// score zero: an unprobed downstream is an unavailable downstream.
func (s *Scorer) Compute(latest []Sample, windows map[string][]Sample) *Score {
	deps := make(map[string]DependencyStatus, len(latest))
	total := 0.0

	for name, weight := range s.weights {
		var current *Sample
		for i := range latest {
			if latest[i].Dependency == name {
				current = &latest[i]
				break
			}
		}

		status := DependencyStatus{}
		if current != nil {
			status.OK = current.OK
			status.Latency = current.Latency

			// Smooth over the rolling window so one marginal sample does not
			// whipsaw the score.
			window := windows[name]
			if len(window) == 0 {
				status.Credit = s.credit(*current)
			} else {
				sum := 0.0
				for _, sample := range window {
					sum += s.credit(sample)
				}
				status.Credit = sum / float64(len(window))
			}
		}

		deps[name] = status
		total += weight * status.Credit
	}

	score := total * 100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	weights := make(map[string]float64, len(s.weights))
	for k, v := range s.weights {
		weights[k] = v
	}

	return &Score{
		Score:        score,
		ComputedAt:   time.Now(),
		Weights:      weights,
		Dependencies: deps,
	}
}
