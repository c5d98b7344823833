// Package health implements the supervisor that continuously classifies the
// system into an operational mode. Probes run against each downstream on a
// tick; results are smoothed over a rolling window, combined into a weighted
// score, and published as an atomically-swapped snapshot every component can
// read without blocking.
package health

// OperationalMode is a discrete capability tier derived from the health
// score. Modes are totally ordered: a higher value permits strictly more.
type OperationalMode int

const (
	// ModeEmergency exposes nothing but the health endpoint itself.
	ModeEmergency OperationalMode = iota
	// ModeConfiguration allows configuration reads only.
	ModeConfiguration
	// ModeReadOnly allows executing saved queries but no generation.
	ModeReadOnly
	// ModeLimitedGeneration allows generation with degraded expectations.
	ModeLimitedGeneration
	// ModeFullOperational exposes every capability.
	ModeFullOperational
)

// String returns the wire name of the mode.
func (m OperationalMode) String() string {
	switch m {
	case ModeFullOperational:
		return "full_operational"
	case ModeLimitedGeneration:
		return "limited_generation"
	case ModeReadOnly:
		return "read_only"
	case ModeConfiguration:
		return "configuration"
	case ModeEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// AllowsGeneration reports whether SQL generation may be attempted in this
// mode. READ_ONLY and below must short-circuit before any provider call.
func (m OperationalMode) AllowsGeneration() bool {
	return m >= ModeLimitedGeneration
}

// AllowsExecution reports whether read queries may be executed in this mode.
func (m OperationalMode) AllowsExecution() bool {
	return m >= ModeReadOnly
}
