package provider

import "strings"

const sqlSystemPrompt = `You translate natural-language questions into a single SQL SELECT statement.

Rules:
- Output exactly one SQL statement and nothing else.
- Only read data. Never write INSERT, UPDATE, DELETE, or DDL.
- Use only tables and columns present in the provided schema context.
- Do not invent tables or columns.
- Prefer explicit column lists over SELECT *.`

// buildPrompt assembles the user message from the schema context and question.
func buildPrompt(req Request) string {
	var b strings.Builder
	if req.SchemaContext != "" {
		b.WriteString("Schema context:\n")
		b.WriteString(req.SchemaContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(req.Question)
	return b.String()
}

// extractSQL strips markdown code fences and surrounding chatter from a model
// response, returning the bare statement. Models frequently wrap SQL in
// ```sql fences even when told not to.
func extractSQL(content string) string {
	trimmed := strings.TrimSpace(content)

	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		// Drop an optional language tag on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(rest[:nl])
			if firstLine == "sql" || firstLine == "SQL" || firstLine == "" {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		trimmed = strings.TrimSpace(rest)
	}

	return trimmed
}
