package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInspectStatementAcceptsReads(t *testing.T) {
	tests := []struct {
		name string
		stmt string
	}{
		{"plain select", "SELECT id, name FROM users"},
		{"trailing semicolon", "SELECT id FROM users;"},
		{"cte", "WITH active AS (SELECT id FROM users) SELECT * FROM active"},
		{"explain", "EXPLAIN SELECT count(*) FROM orders"},
		{"verb inside literal", "SELECT id FROM audit WHERE action = 'drop table users'"},
		{"comment stripped", "SELECT id FROM users -- trailing note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := InspectStatement(tt.stmt)
			assert.True(t, result.OK, "reason: %s", result.Reason)
			assert.NotEmpty(t, result.Normalized)
		})
	}
}

func TestInspectStatementRejects(t *testing.T) {
	tests := []struct {
		name string
		stmt string
	}{
		{"empty", ""},
		{"only comment", "-- nothing here"},
		{"batch", "SELECT 1; SELECT 2"},
		{"update entry", "UPDATE users SET name = 'x'"},
		{"delete entry", "DELETE FROM users"},
		{"drop via cte", "WITH x AS (SELECT 1) DROP TABLE users"},
		{"insert in subquery position", "SELECT * FROM users WHERE id IN (INSERT INTO t VALUES (1) RETURNING id)"},
		{"truncate", "TRUNCATE users"},
		{"grant", "GRANT ALL ON users TO intruder"},
		{"stacked after comment", "SELECT 1 /* x */; DELETE FROM users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := InspectStatement(tt.stmt)
			assert.False(t, result.OK)
			assert.NotEmpty(t, result.Reason)
		})
	}
}

func TestInspectStatementFlagsInjectionLiterals(t *testing.T) {
	result := InspectStatement(`SELECT id FROM users WHERE name = '1'' OR ''1''=''1'`)
	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "injection pattern")
}
