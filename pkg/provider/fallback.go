package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// fallbackConfidence is deliberately low so downstream consumers can flag
// fallback-generated statements to the user.
const fallbackConfidence = 0.25

var createTablePattern = regexp.MustCompile(`(?i)(?:create\s+table|table)\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)

// FallbackClient is the deterministic last-resort generator. It performs no
// network calls, so its circuit breaker is configured to never trip. The
// output is a conservative preview query over the most relevant table it can
// identify, not a real answer to the question.
type FallbackClient struct {
	rowLimit int
}

// NewFallbackClient creates the template-based fallback generator.
func NewFallbackClient() *FallbackClient {
	return &FallbackClient{rowLimit: 100}
}

// Model returns a fixed identifier for snapshots and logs.
func (c *FallbackClient) Model() string {
	return "template-fallback"
}

// GenerateSQL emits a bounded preview of the table the question most likely
// refers to. It only fails when the schema context names no tables at all.
func (c *FallbackClient) GenerateSQL(ctx context.Context, req Request) (*Result, error) {
	tables := extractTableNames(req.SchemaContext)
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables in schema context")
	}

	table := pickMentionedTable(req.Question, tables)

	return &Result{
		SQL:        fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, c.rowLimit),
		Confidence: fallbackConfidence,
		Model:      c.Model(),
	}, nil
}

// extractTableNames pulls table identifiers out of DDL-style schema context.
func extractTableNames(schemaContext string) []string {
	var tables []string
	seen := make(map[string]bool)
	for _, match := range createTablePattern.FindAllStringSubmatch(schemaContext, -1) {
		name := strings.ToLower(match[1])
		if !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}
	return tables
}

// pickMentionedTable prefers a table whose name (or singular form) appears in
// the question, falling back to the first table in the schema.
func pickMentionedTable(question string, tables []string) string {
	lowered := strings.ToLower(question)
	for _, table := range tables {
		bare := table
		if idx := strings.LastIndexByte(bare, '.'); idx >= 0 {
			bare = bare[idx+1:]
		}
		if strings.Contains(lowered, bare) || strings.Contains(lowered, strings.TrimSuffix(bare, "s")) {
			return table
		}
	}
	return tables[0]
}
