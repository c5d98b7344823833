// Package safety implements the two-stage gate every generated statement
// passes before it may be shown or executed: a structural firewall, then
// policy injection against a versioned snapshot of row and column rules.
package safety

import (
	"context"
	"fmt"

	"github.com/querylens-ai/querylens-engine/pkg/database"
	"github.com/querylens-ai/querylens-engine/pkg/models"
)

// PolicyStore loads the full policy rule set. Rules are administered outside
// this service; the engine only ever reads.
type PolicyStore interface {
	LoadRules(ctx context.Context) ([]models.PolicyRule, error)
}

// PostgresPolicyStore reads policy rules from the policy_rules table.
type PostgresPolicyStore struct {
	db *database.DB
}

// NewPostgresPolicyStore creates a policy store backed by PostgreSQL.
func NewPostgresPolicyStore(db *database.DB) *PostgresPolicyStore {
	return &PostgresPolicyStore{db: db}
}

// LoadRules returns all policy rules in a stable order. The ordering matters:
// clause injection appends predicates in rule order, and the order must not
// depend on query planner whims.
func (s *PostgresPolicyStore) LoadRules(ctx context.Context) ([]models.PolicyRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, scope, target_table,
		       COALESCE(predicate_template, ''), COALESCE(column_name, ''),
		       applies_to_role, created_at, updated_at
		FROM policy_rules
		ORDER BY target_table, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy rules: %w", err)
	}
	defer rows.Close()

	var rules []models.PolicyRule
	for rows.Next() {
		var r models.PolicyRule
		if err := rows.Scan(&r.ID, &r.Scope, &r.TargetTable,
			&r.PredicateTemplate, &r.ColumnName,
			&r.AppliesToRole, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read policy rules: %w", err)
	}

	return rules, nil
}
