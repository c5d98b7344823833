package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStringLiterals(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "no literals",
			input: "SELECT id FROM users",
			want:  nil,
		},
		{
			name:  "single literal",
			input: "SELECT * FROM users WHERE name = 'alice'",
			want:  []string{"alice"},
		},
		{
			name:  "multiple literals",
			input: "SELECT * FROM t WHERE a = 'x' AND b = 'y'",
			want:  []string{"x", "y"},
		},
		{
			name:  "doubled quote escape",
			input: "SELECT * FROM users WHERE name = 'O''Brien'",
			want:  []string{"O'Brien"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractStringLiterals(tt.input))
		})
	}
}

func TestCheckStatementLiterals(t *testing.T) {
	t.Run("clean statement", func(t *testing.T) {
		results := CheckStatementLiterals("SELECT * FROM users WHERE name = 'alice'")
		assert.Empty(t, results)
	})

	t.Run("injection pattern in literal", func(t *testing.T) {
		results := CheckStatementLiterals("SELECT * FROM users WHERE name = '1'' OR ''1''=''1'")
		require.NotEmpty(t, results)
		assert.True(t, results[0].IsSQLi)
		assert.NotEmpty(t, results[0].Fingerprint)
	})

	t.Run("numeric comparisons are not literals", func(t *testing.T) {
		results := CheckStatementLiterals("SELECT * FROM orders WHERE total > 100 AND status_code = 7")
		assert.Empty(t, results)
	})
}
