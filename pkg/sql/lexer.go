package sql

import (
	"strings"
	"unicode"
)

// forbiddenVerbs are the data- and schema-modifying keywords the firewall
// rejects anywhere in a statement, including inside CTEs and subqueries.
var forbiddenVerbs = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"drop":     true,
	"truncate": true,
	"alter":    true,
	"grant":    true,
	"revoke":   true,
	"create":   true,
	"merge":    true,
	"call":     true,
	"exec":     true,
	"execute":  true,
	"copy":     true,
	"do":       true,
	"vacuum":   true,
}

// readEntryKeywords are the only keywords a statement may begin with.
var readEntryKeywords = map[string]bool{
	"select":  true,
	"with":    true,
	"explain": true,
}

// ScanKeywords returns all lowercase word tokens appearing outside string
// literals, in order. Quoted identifiers and string contents are skipped so
// a literal like 'please do not DROP this' cannot trip the verb scan.
func ScanKeywords(sqlQuery string) []string {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	var tokens []string
	var current strings.Builder
	state := stateNormal
	prevChar := rune(0)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	for _, ch := range sqlQuery {
		switch state {
		case stateNormal:
			switch {
			case ch == '\'':
				flush()
				state = stateSingleQuote
			case ch == '"':
				flush()
				state = stateDoubleQuote
			case unicode.IsLetter(ch) || ch == '_':
				current.WriteRune(ch)
			case unicode.IsDigit(ch) && current.Len() > 0:
				current.WriteRune(ch)
			default:
				flush()
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
	flush()

	return tokens
}

// FirstKeyword returns the first keyword of the statement, lowercase, or ""
// for an empty statement.
func FirstKeyword(sqlQuery string) string {
	tokens := ScanKeywords(sqlQuery)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// IsReadEntryKeyword reports whether kw may begin a read-only statement.
func IsReadEntryKeyword(kw string) bool {
	return readEntryKeywords[kw]
}

// FindForbiddenVerb scans the statement for data- or schema-modifying
// keywords and returns the first one found.
func FindForbiddenVerb(sqlQuery string) (string, bool) {
	for _, tok := range ScanKeywords(sqlQuery) {
		if forbiddenVerbs[tok] {
			return tok, true
		}
	}
	return "", false
}
