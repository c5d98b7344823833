package sql

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a string
// literal embedded in a generated statement.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Literal     string // The literal content that failed the check
}

// ExtractStringLiterals returns the contents of all single-quoted string
// literals in the statement. Doubled quotes ('') are unescaped.
func ExtractStringLiterals(sqlQuery string) []string {
	var literals []string
	var current strings.Builder
	inString := false
	prevChar := rune(0)

	for _, ch := range sqlQuery {
		if inString {
			if ch == '\'' && prevChar != '\\' {
				inString = false
				literals = append(literals, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		} else if ch == '\'' {
			// A quote immediately following a closed literal is the SQL
			// standard '' escape: reopen and keep accumulating.
			if prevChar == '\'' && len(literals) > 0 {
				inString = true
				current.WriteString(literals[len(literals)-1])
				current.WriteRune('\'')
				literals = literals[:len(literals)-1]
			} else {
				inString = true
			}
		}
		prevChar = ch
	}

	return literals
}

// CheckStatementLiterals runs libinjection over every string literal in a
// generated statement. Model output can embed caller-typed text as literals,
// so each one is fingerprinted for injection patterns (stacked queries,
// comment truncation, tautologies).
//
// Returns nil if all literals are clean.
func CheckStatementLiterals(sqlQuery string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, lit := range ExtractStringLiterals(sqlQuery) {
		if lit == "" {
			continue
		}
		isSQLi, fingerprint := libinjection.IsSQLi(lit)
		if isSQLi {
			results = append(results, &InjectionCheckResult{
				IsSQLi:      true,
				Fingerprint: string(fingerprint),
				Literal:     lit,
			})
		}
	}
	return results
}
