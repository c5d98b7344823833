// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventFirewallRejection is logged when the statement firewall refuses a
	// generated statement (forbidden verb, batch, injection fingerprint).
	EventFirewallRejection SecurityEventType = "firewall_rejection"
	// EventPolicyDenial is logged when a role is refused a column it is not
	// entitled to.
	EventPolicyDenial SecurityEventType = "policy_denial"
	// EventGenerationDisabled is logged when a request is refused because the
	// operational mode forbids generation.
	EventGenerationDisabled SecurityEventType = "generation_disabled"
)

// SecurityEvent represents an auditable security event with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     SecurityEventType `json:"event_type"`
	Role          string            `json:"role,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	ClientIP      string            `json:"client_ip,omitempty"`
	Details       any               `json:"details"`
	Severity      string            `json:"severity"` // info, warning, critical
}

// RejectionDetails contains specifics of a refused statement. The statement
// text itself is deliberately truncated upstream before it reaches here.
type RejectionDetails struct {
	Reason        string `json:"reason"`
	PolicyVersion int64  `json:"policy_version,omitempty"`
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogFirewallRejection records a stage-1 rejection. Logged at ERROR level
// with "critical" severity: a forbidden verb in generated output means
// either a misbehaving model or a prompt injection attempt.
func (a *SecurityAuditor) LogFirewallRejection(role, correlationID, clientIP string, details RejectionDetails) {
	event := SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     EventFirewallRejection,
		Role:          role,
		CorrelationID: correlationID,
		ClientIP:      clientIP,
		Details:       details,
		Severity:      "critical",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Error("statement firewall rejection",
		zap.String("event_json", string(eventJSON)),
		zap.String("role", role),
		zap.String("correlation_id", correlationID),
		zap.String("client_ip", clientIP),
		zap.String("reason", details.Reason),
		zap.String("severity", "critical"),
	)
}

// LogPolicyDenial records a stage-2 entitlement denial. Logged at WARN level:
// these are usually legitimate questions that strayed onto withheld columns.
func (a *SecurityAuditor) LogPolicyDenial(role, correlationID, clientIP string, details RejectionDetails) {
	event := SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     EventPolicyDenial,
		Role:          role,
		CorrelationID: correlationID,
		ClientIP:      clientIP,
		Details:       details,
		Severity:      "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("policy entitlement denial",
		zap.String("event_json", string(eventJSON)),
		zap.String("role", role),
		zap.String("correlation_id", correlationID),
		zap.String("client_ip", clientIP),
		zap.String("reason", details.Reason),
		zap.Int64("policy_version", details.PolicyVersion),
		zap.String("severity", "warning"),
	)
}

// LogGenerationDisabled records a request refused by the operational mode.
func (a *SecurityAuditor) LogGenerationDisabled(role, correlationID, clientIP, mode string) {
	event := SecurityEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     EventGenerationDisabled,
		Role:          role,
		CorrelationID: correlationID,
		ClientIP:      clientIP,
		Details:       map[string]string{"mode": mode},
		Severity:      "info",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Info("generation disabled by operational mode",
		zap.String("event_json", string(eventJSON)),
		zap.String("role", role),
		zap.String("correlation_id", correlationID),
		zap.String("mode", mode),
	)
}
