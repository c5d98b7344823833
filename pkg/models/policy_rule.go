package models

import (
	"time"

	"github.com/google/uuid"
)

// PolicyScope distinguishes row-filtering rules from column entitlements.
type PolicyScope string

const (
	// PolicyScopeRow rules contribute a predicate conjunct to matching queries.
	PolicyScopeRow PolicyScope = "row"
	// PolicyScopeColumn rules forbid a role from reading a column.
	PolicyScopeColumn PolicyScope = "column"
)

// PolicyRule is one row or column policy loaded from storage. Rules are
// matched by (target table, role); an empty AppliesToRole matches every role.
type PolicyRule struct {
	ID          uuid.UUID   `json:"id"`
	Scope       PolicyScope `json:"scope"`
	TargetTable string      `json:"target_table"`

	// PredicateTemplate is the SQL conjunct appended for row-scope rules,
	// e.g. "tenant_id = current_setting('app.tenant_id')::uuid".
	PredicateTemplate string `json:"predicate_template,omitempty"`

	// ColumnName is the column withheld by column-scope rules.
	ColumnName string `json:"column_name,omitempty"`

	// AppliesToRole restricts the rule to one role; empty means all roles.
	AppliesToRole string `json:"applies_to_role,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppliesTo reports whether the rule binds for the given role.
func (r *PolicyRule) AppliesTo(role string) bool {
	return r.AppliesToRole == "" || r.AppliesToRole == role
}
