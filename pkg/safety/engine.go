package safety

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/apperrors"
	"github.com/querylens-ai/querylens-engine/pkg/models"
)

// Engine is the query safety engine. Evaluate is pure with respect to the
// policy snapshot: the same statement, role, and snapshot version always
// produce the same verdict and the same final text.
type Engine struct {
	cache  *Cache
	logger *zap.Logger
}

// NewEngine creates a safety engine over the given policy cache.
func NewEngine(cache *Cache, logger *zap.Logger) *Engine {
	return &Engine{
		cache:  cache,
		logger: logger.Named("safety"),
	}
}

// Evaluate runs both safety stages on a raw statement for a role.
//
// Stage 1 (firewall) rejections return KindFirewallRejected; stage 2
// (column entitlement) denials return KindPolicyDenied. Both are terminal.
// On success the returned statement carries the rewritten FinalText with
// every matching row predicate appended.
func (e *Engine) Evaluate(raw, role string) (*models.GeneratedStatement, error) {
	snap := e.cache.Snapshot()

	stmt := &models.GeneratedStatement{
		RawText:       raw,
		PolicyVersion: snap.Version,
		GeneratedAt:   time.Now(),
	}

	fw := InspectStatement(raw)
	if !fw.OK {
		stmt.Verdict = models.FirewallRejected
		stmt.RejectionReason = fw.Reason
		e.logger.Warn("firewall rejected statement",
			zap.String("role", role),
			zap.String("reason", fw.Reason))
		return stmt, apperrors.New(apperrors.KindFirewallRejected, fw.Reason, false)
	}
	stmt.Verdict = models.FirewallPassed

	tables := ReferencedTables(fw.Normalized)

	// Column entitlement before any rewriting. Forbidden columns are
	// collected across every referenced table for this role.
	forbidden := make(map[string]bool)
	for _, table := range tables {
		for _, rule := range e.columnRulesFor(snap, table, role) {
			forbidden[rule.ColumnName] = true
		}
	}
	if col, hit := forbiddenColumnIn(fw.Normalized, forbidden); hit {
		reason := fmt.Sprintf("role is not entitled to column %q", col)
		stmt.RejectionReason = reason
		e.logger.Warn("policy denied statement",
			zap.String("role", role),
			zap.String("column", col))
		return stmt, apperrors.New(apperrors.KindPolicyDenied, reason, false)
	}

	// Row predicates, in table order of appearance then rule load order.
	var predicates []string
	for _, table := range tables {
		for _, rule := range e.rowRulesFor(snap, table, role) {
			predicates = append(predicates, rule.PredicateTemplate)
		}
	}

	// A set operation has branches the appended WHERE cannot reach; when
	// row policy applies, denying beats passing a half-filtered statement.
	if len(predicates) > 0 && hasTopLevelSetOperation(fw.Normalized) {
		reason := "row policy cannot be applied across UNION/INTERSECT/EXCEPT branches"
		stmt.RejectionReason = reason
		e.logger.Warn("policy denied statement",
			zap.String("role", role),
			zap.String("reason", reason))
		return stmt, apperrors.New(apperrors.KindPolicyDenied, reason, false)
	}

	final, err := appendConjuncts(fw.Normalized, predicates)
	if err != nil {
		// A malformed rule must never let the statement through unfiltered.
		stmt.RejectionReason = err.Error()
		return stmt, apperrors.Wrap(apperrors.KindPolicyDenied,
			"policy rule could not be applied", false, err)
	}

	stmt.FinalText = final
	stmt.PolicyClausesApplied = predicates
	return stmt, nil
}

// columnRulesFor matches rules by the table's full name and, when schema
// qualified, its bare name.
func (e *Engine) columnRulesFor(snap *Snapshot, table, role string) []models.PolicyRule {
	rules := snap.ColumnRules(table, role)
	if bare := bareTableName(table); bare != table {
		rules = append(rules, snap.ColumnRules(bare, role)...)
	}
	return rules
}

func (e *Engine) rowRulesFor(snap *Snapshot, table, role string) []models.PolicyRule {
	rules := snap.RowRules(table, role)
	if bare := bareTableName(table); bare != table {
		rules = append(rules, snap.RowRules(bare, role)...)
	}
	return rules
}
