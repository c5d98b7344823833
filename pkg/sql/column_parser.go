package sql

import (
	"regexp"
	"strings"
)

// ParsedColumn represents a column extracted from a SELECT statement.
type ParsedColumn struct {
	Name string // The column name or alias
	Expr string // The full expression (e.g., "SUM(amount)")
}

// SelectList is the parsed projection of a SELECT statement.
type SelectList struct {
	Columns []ParsedColumn
	// Star is true when the projection contains * or table.* — the column
	// set cannot be determined without schema knowledge.
	Star bool
}

// ParseSelectList extracts the projected columns from a SELECT statement.
// This is a lexical parser for common SELECT patterns:
// - Simple columns: SELECT id, name
// - Aliased columns: SELECT name AS customer_name, COUNT(*) AS total
// - Functions: SELECT SUM(amount), MAX(price)
// - Table-qualified columns: SELECT u.name, o.total
//
// It does not descend into subqueries in the projection and assumes the
// statement already passed firewall validation.
func ParseSelectList(sqlQuery string) SelectList {
	sqlQuery = strings.TrimSpace(sqlQuery)
	sqlLower := strings.ToLower(sqlQuery)

	selectIdx := strings.Index(sqlLower, "select")
	if selectIdx == -1 {
		return SelectList{}
	}

	// Find end of the projection (first FROM/WHERE/... at paren depth zero).
	endKeywords := []string{" from ", " where ", " group ", " order ", " limit ", " union ", " intersect ", " except "}
	endIdx := len(sqlQuery)
	for _, keyword := range endKeywords {
		idx := strings.Index(sqlLower[selectIdx:], keyword)
		if idx != -1 && selectIdx+idx < endIdx {
			endIdx = selectIdx + idx
		}
	}

	selectClause := strings.TrimSpace(sqlQuery[selectIdx+len("select") : endIdx])

	list := SelectList{}
	for _, col := range splitSelectColumns(selectClause) {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		if col == "*" || strings.HasSuffix(col, ".*") {
			list.Star = true
			continue
		}
		list.Columns = append(list.Columns, parseColumnExpression(col))
	}

	return list
}

// splitSelectColumns splits a SELECT column list by commas, respecting parentheses.
func splitSelectColumns(selectClause string) []string {
	var columns []string
	var current strings.Builder
	parenDepth := 0

	for _, ch := range selectClause {
		switch ch {
		case '(':
			parenDepth++
			current.WriteRune(ch)
		case ')':
			parenDepth--
			current.WriteRune(ch)
		case ',':
			if parenDepth == 0 {
				columns = append(columns, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		columns = append(columns, current.String())
	}

	return columns
}

var asAliasPattern = regexp.MustCompile(`(?i)\s+as\s+(\w+)\s*$`)

// parseColumnExpression parses a single column expression to extract the name/alias.
// Examples:
//   - "name" → name
//   - "u.name" → name
//   - "name AS customer_name" → customer_name
//   - "COUNT(*)" → count
//   - "SUM(amount) AS total" → total
func parseColumnExpression(expr string) ParsedColumn {
	expr = strings.TrimSpace(expr)

	if matches := asAliasPattern.FindStringSubmatch(expr); matches != nil {
		return ParsedColumn{
			Name: strings.ToLower(matches[1]),
			Expr: expr,
		}
	}

	// Implicit alias: "COUNT(*) total" → total. Only when parens are balanced
	// and the last word is not part of a function call or a keyword.
	if strings.Count(expr, "(") == strings.Count(expr, ")") {
		parts := strings.Fields(expr)
		if len(parts) > 1 {
			last := parts[len(parts)-1]
			lastLower := strings.ToLower(last)
			if !strings.ContainsAny(last, "()") && !columnListKeywords[lastLower] {
				return ParsedColumn{
					Name: lastLower,
					Expr: expr,
				}
			}
		}
	}

	return ParsedColumn{
		Name: extractColumnName(expr),
		Expr: expr,
	}
}

var columnListKeywords = map[string]bool{
	"from": true, "where": true, "group": true, "order": true,
	"limit": true, "and": true, "or": true, "as": true,
}

var funcNamePattern = regexp.MustCompile(`^(\w+)\s*\(`)
var nonWordPattern = regexp.MustCompile(`[^\w]`)

// extractColumnName extracts a bare column name from an expression.
func extractColumnName(expr string) string {
	expr = strings.TrimSpace(expr)

	// Remove table qualifiers ("users.name" → "name").
	if dotIdx := strings.LastIndex(expr, "."); dotIdx != -1 {
		expr = expr[dotIdx+1:]
	}

	// Function calls resolve to the function name ("SUM(amount)" → "sum").
	if matches := funcNamePattern.FindStringSubmatch(expr); matches != nil {
		return strings.ToLower(matches[1])
	}

	if strings.HasPrefix(strings.ToLower(expr), "case") {
		return "case_result"
	}

	name := strings.Trim(expr, "`\"[]")
	name = nonWordPattern.ReplaceAllString(strings.TrimSpace(name), "")

	return strings.ToLower(name)
}
