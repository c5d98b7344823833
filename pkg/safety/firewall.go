package safety

import (
	"fmt"

	sqlparse "github.com/querylens-ai/querylens-engine/pkg/sql"
)

// FirewallResult is the stage-1 structural verdict on a statement.
type FirewallResult struct {
	// OK is true when the statement cleared every check.
	OK bool
	// Normalized is the comment-stripped single statement, set only on pass.
	Normalized string
	// Reason explains a rejection in operator-safe terms.
	Reason string
}

// InspectStatement runs the structural firewall. Rejections are terminal and
// never retried: a statement that fails here is broken by construction, not
// by circumstance.
//
// Checks, in order:
//  1. Normalization: comments stripped, exactly one statement, non-empty.
//  2. The statement must begin with a read keyword (SELECT, WITH, EXPLAIN).
//  3. No data- or schema-modifying verb anywhere, including CTE bodies.
//  4. No injection fingerprint in any embedded string literal.
func InspectStatement(raw string) FirewallResult {
	result := sqlparse.ValidateAndNormalize(raw)
	if result.Error != nil {
		return FirewallResult{Reason: result.Error.Error()}
	}
	normalized := result.NormalizedSQL

	first := sqlparse.FirstKeyword(normalized)
	if !sqlparse.IsReadEntryKeyword(first) {
		return FirewallResult{
			Reason: fmt.Sprintf("statement must begin with SELECT, WITH, or EXPLAIN; got %q", first),
		}
	}

	if verb, found := sqlparse.FindForbiddenVerb(normalized); found {
		return FirewallResult{
			Reason: fmt.Sprintf("forbidden verb %q in statement", verb),
		}
	}

	if hits := sqlparse.CheckStatementLiterals(normalized); len(hits) > 0 {
		return FirewallResult{
			Reason: fmt.Sprintf("injection pattern in string literal (fingerprint %s)", hits[0].Fingerprint),
		}
	}

	return FirewallResult{OK: true, Normalized: normalized}
}
