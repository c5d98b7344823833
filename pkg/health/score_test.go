package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSLA = 100 * time.Millisecond

func testWeights() map[string]float64 {
	return map[string]float64{
		DependencyStorage:  0.40,
		DependencyProvider: 0.30,
		DependencyCache:    0.15,
		DependencyIndex:    0.15,
	}
}

func sampleSet(ok map[string]bool, latency time.Duration) []Sample {
	now := time.Now()
	var samples []Sample
	for _, dep := range []string{DependencyStorage, DependencyProvider, DependencyCache, DependencyIndex} {
		samples = append(samples, Sample{
			Dependency: dep,
			OK:         ok[dep],
			Latency:    latency,
			SampledAt:  now,
		})
	}
	return samples
}

func allHealthy() []Sample {
	return sampleSet(map[string]bool{
		DependencyStorage: true, DependencyProvider: true,
		DependencyCache: true, DependencyIndex: true,
	}, 10*time.Millisecond)
}

func TestComputeAllHealthy(t *testing.T) {
	scorer := NewScorer(testWeights(), testSLA)
	score := scorer.Compute(allHealthy(), nil)

	assert.InDelta(t, 100.0, score.Score, 1e-9)
	assert.InDelta(t, 1.0, score.Weights[DependencyStorage]+score.Weights[DependencyProvider]+
		score.Weights[DependencyCache]+score.Weights[DependencyIndex], 1e-9)
}

func TestComputeAllDown(t *testing.T) {
	scorer := NewScorer(testWeights(), testSLA)
	score := scorer.Compute(sampleSet(map[string]bool{}, 10*time.Millisecond), nil)
	assert.Zero(t, score.Score)
}

func TestComputeScoreInRange(t *testing.T) {
	scorer := NewScorer(testWeights(), testSLA)
	latencies := []time.Duration{0, testSLA / 2, testSLA, testSLA + testSLA/2, 2 * testSLA, 10 * testSLA}
	okStates := []map[string]bool{
		{},
		{DependencyStorage: true},
		{DependencyStorage: true, DependencyProvider: true},
		{DependencyStorage: true, DependencyProvider: true, DependencyCache: true, DependencyIndex: true},
	}
	for _, lat := range latencies {
		for _, ok := range okStates {
			score := scorer.Compute(sampleSet(ok, lat), nil)
			assert.GreaterOrEqual(t, score.Score, 0.0)
			assert.LessOrEqual(t, score.Score, 100.0)
		}
	}
}

func TestComputeMonotonicInSingleDependency(t *testing.T) {
	scorer := NewScorer(testWeights(), testSLA)

	// Other dependencies held fixed while storage improves.
	base := map[string]bool{DependencyProvider: true}
	worse := scorer.Compute(sampleSet(base, 10*time.Millisecond), nil)

	better := sampleSet(base, 10*time.Millisecond)
	for i := range better {
		if better[i].Dependency == DependencyStorage {
			better[i].OK = true
		}
	}
	improved := scorer.Compute(better, nil)

	assert.Greater(t, improved.Score, worse.Score)
}

func TestLatencyDecay(t *testing.T) {
	scorer := NewScorer(testWeights(), testSLA)

	tests := []struct {
		name    string
		latency time.Duration
		credit  float64
	}{
		{"within SLA", testSLA / 2, 1.0},
		{"exactly SLA", testSLA, 1.0},
		{"halfway to 2x SLA", testSLA + testSLA/2, 0.5},
		{"at 2x SLA", 2 * testSLA, 0.0},
		{"beyond 2x SLA", 5 * testSLA, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.credit(Sample{OK: true, Latency: tt.latency})
			assert.InDelta(t, tt.credit, got, 1e-9)
		})
	}

	assert.Zero(t, scorer.credit(Sample{OK: false, Latency: time.Millisecond}))
}

func TestComputeSmoothsOverWindow(t *testing.T) {
	scorer := NewScorer(map[string]float64{DependencyStorage: 1.0}, testSLA)

	up := Sample{Dependency: DependencyStorage, OK: true, Latency: time.Millisecond}
	down := Sample{Dependency: DependencyStorage, OK: false}

	windows := map[string][]Sample{
		DependencyStorage: {up, down, up, up},
	}
	score := scorer.Compute([]Sample{up}, windows)

	require.InDelta(t, 75.0, score.Score, 1e-9)
}
