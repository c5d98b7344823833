package models

import "time"

// FirewallVerdict is the stage-1 safety outcome for a generated statement.
type FirewallVerdict string

const (
	// FirewallPassed means the statement cleared every structural check.
	FirewallPassed FirewallVerdict = "passed"
	// FirewallRejected means the statement was refused outright.
	FirewallRejected FirewallVerdict = "rejected"
)

// GeneratedStatement is the full record of one statement's trip through
// generation and the two-stage safety engine. The RawText is what the model
// produced; FinalText is what may actually reach a database.
type GeneratedStatement struct {
	// RawText is the statement as the provider returned it.
	RawText string `json:"raw_text"`
	// FinalText is the statement after policy clause injection. Empty when
	// the firewall rejected the statement.
	FinalText string `json:"final_text,omitempty"`

	Verdict FirewallVerdict `json:"verdict"`
	// RejectionReason explains a rejected verdict in operator-safe terms.
	RejectionReason string `json:"rejection_reason,omitempty"`

	// PolicyClausesApplied lists the row-scope predicates appended, in the
	// order they were appended.
	PolicyClausesApplied []string `json:"policy_clauses_applied,omitempty"`
	// PolicyVersion is the policy snapshot version the decision was made
	// under. Identical inputs under the same version yield identical output.
	PolicyVersion int64 `json:"policy_version"`

	// Provider attribution.
	EndpointID string  `json:"endpoint_id,omitempty"`
	Model      string  `json:"model,omitempty"`
	Confidence float64 `json:"confidence"`

	GeneratedAt time.Time `json:"generated_at"`
}
