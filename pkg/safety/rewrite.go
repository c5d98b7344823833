package safety

import (
	"fmt"
	"strings"
	"unicode"

	sqlparse "github.com/querylens-ai/querylens-engine/pkg/sql"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenComma
)

// stmtToken is one word or comma in a statement, with its byte offset and
// parenthesis depth. String literal contents are never tokenized.
type stmtToken struct {
	kind  tokenKind
	word  string // lowercase, empty for commas
	start int
	depth int
}

// scanStatement tokenizes words (including dotted identifiers) and commas
// outside string literals, tracking parenthesis depth.
func scanStatement(stmt string) []stmtToken {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	var tokens []stmtToken
	state := stateNormal
	depth := 0
	wordStart := -1
	prevChar := rune(0)

	flush := func(end int) {
		if wordStart >= 0 {
			tokens = append(tokens, stmtToken{
				kind:  tokenWord,
				word:  strings.ToLower(stmt[wordStart:end]),
				start: wordStart,
				depth: depth,
			})
			wordStart = -1
		}
	}

	for i, ch := range stmt {
		switch state {
		case stateNormal:
			switch {
			case ch == '\'':
				flush(i)
				state = stateSingleQuote
			case ch == '"':
				flush(i)
				state = stateDoubleQuote
			case unicode.IsLetter(ch) || ch == '_':
				if wordStart < 0 {
					wordStart = i
				}
			case (unicode.IsDigit(ch) || ch == '.') && wordStart >= 0:
				// Keep dotted identifiers like schema.table together.
			case ch == '(':
				flush(i)
				depth++
			case ch == ')':
				flush(i)
				depth--
			case ch == ',':
				flush(i)
				tokens = append(tokens, stmtToken{kind: tokenComma, start: i, depth: depth})
			default:
				flush(i)
			}
		case stateSingleQuote:
			if ch == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = ch
	}
	flush(len(stmt))

	return tokens
}

// fromListTerminators end a FROM table list at its own depth.
var fromListTerminators = map[string]bool{
	"where": true, "group": true, "order": true, "limit": true,
	"offset": true, "having": true, "union": true, "intersect": true,
	"except": true, "on": true, "using": true, "window": true,
	"for": true, "fetch": true,
}

// notTableNames are keywords that can follow FROM/JOIN without being tables.
var notTableNames = map[string]bool{
	"select": true, "lateral": true, "unnest": true, "values": true,
}

// ReferencedTables returns every table named after FROM or JOIN at any
// nesting depth, lowercased, in order of first appearance. Subquery and
// CTE-internal references are included so their policies bind too.
func ReferencedTables(stmt string) []string {
	tokens := scanStatement(stmt)

	var tables []string
	seen := make(map[string]bool)
	expectTable := false
	inList := false
	listDepth := 0

	for _, tok := range tokens {
		if tok.kind == tokenComma {
			if inList && tok.depth == listDepth {
				expectTable = true
			}
			continue
		}

		switch {
		case tok.word == "from" || tok.word == "join":
			expectTable = true
			inList = true
			listDepth = tok.depth
		case expectTable:
			expectTable = false
			if notTableNames[tok.word] || fromListTerminators[tok.word] {
				if fromListTerminators[tok.word] && tok.depth == listDepth {
					inList = false
				}
				continue
			}
			if !seen[tok.word] {
				seen[tok.word] = true
				tables = append(tables, tok.word)
			}
		case inList && tok.depth == listDepth && fromListTerminators[tok.word]:
			inList = false
		}
	}

	return tables
}

// bareTableName strips a schema qualifier: "public.users" becomes "users".
func bareTableName(table string) string {
	if idx := strings.LastIndexByte(table, '.'); idx >= 0 {
		return table[idx+1:]
	}
	return table
}

// setOperationKeywords combine result branches at the statement's top level.
var setOperationKeywords = map[string]bool{
	"union": true, "intersect": true, "except": true,
}

// hasTopLevelSetOperation reports whether the statement joins branches with
// UNION, INTERSECT, or EXCEPT outside any parentheses. An appended WHERE
// conjunct only reaches the branch it lands in, so such statements cannot be
// rewritten with a single clause.
func hasTopLevelSetOperation(stmt string) bool {
	for _, tok := range scanStatement(stmt) {
		if tok.kind == tokenWord && tok.depth == 0 && setOperationKeywords[tok.word] {
			return true
		}
	}
	return false
}

// insertionPoints tail keywords end the top-level WHERE-insertable region.
var trailingClauseKeywords = map[string]bool{
	"group": true, "order": true, "limit": true, "offset": true,
	"having": true, "union": true, "intersect": true, "except": true,
	"window": true, "for": true, "fetch": true,
}

// appendConjuncts injects row-policy predicates into the statement's
// top-level WHERE clause, creating one when absent. Each predicate is
// parenthesized and joined with AND so rule text cannot change the meaning
// of the existing condition.
func appendConjuncts(stmt string, predicates []string) (string, error) {
	if len(predicates) == 0 {
		return stmt, nil
	}

	wrapped := make([]string, len(predicates))
	for i, p := range predicates {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", fmt.Errorf("policy rule has empty predicate template")
		}
		wrapped[i] = "(" + p + ")"
	}
	clause := strings.Join(wrapped, " AND ")

	hasWhere := false
	insertPos := len(stmt)
	for _, tok := range scanStatement(stmt) {
		if tok.kind != tokenWord || tok.depth != 0 {
			continue
		}
		if tok.word == "where" {
			hasWhere = true
			continue
		}
		if trailingClauseKeywords[tok.word] {
			insertPos = tok.start
			break
		}
	}

	head := strings.TrimRight(stmt[:insertPos], " \t\n")
	tail := stmt[insertPos:]

	joiner := " WHERE "
	if hasWhere {
		joiner = " AND "
	}

	out := head + joiner + clause
	if tail != "" {
		out += " " + tail
	}
	return out, nil
}

// forbiddenColumnIn reports the first withheld column the statement touches.
// The check is deliberately broad: a forbidden column appearing anywhere in
// the statement (projection, predicate, ordering) denies it, since any of
// those can leak values. SELECT * is denied outright when a column rule
// binds, because the projection cannot be proven clean without the schema.
func forbiddenColumnIn(stmt string, forbidden map[string]bool) (string, bool) {
	if len(forbidden) == 0 {
		return "", false
	}

	if list := sqlparse.ParseSelectList(stmt); list.Star {
		return "*", true
	}

	for _, tok := range scanStatement(stmt) {
		if tok.kind != tokenWord {
			continue
		}
		if forbidden[bareTableName(tok.word)] {
			return tok.word, true
		}
	}
	return "", false
}
