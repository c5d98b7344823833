package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndNormalize(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		normalized string
		wantErr    error
	}{
		{
			name:       "simple select",
			input:      "SELECT id FROM users",
			normalized: "SELECT id FROM users",
		},
		{
			name:       "trailing semicolon stripped",
			input:      "SELECT id FROM users;",
			normalized: "SELECT id FROM users",
		},
		{
			name:       "trailing semicolon with whitespace",
			input:      "SELECT id FROM users ; \n",
			normalized: "SELECT id FROM users",
		},
		{
			name:    "stacked statements rejected",
			input:   "SELECT * FROM accounts; DROP TABLE accounts;",
			wantErr: ErrMultipleStatements,
		},
		{
			name:       "semicolon inside string literal allowed",
			input:      "SELECT * FROM notes WHERE body = 'a; b'",
			normalized: "SELECT * FROM notes WHERE body = 'a; b'",
		},
		{
			name:       "semicolon inside quoted identifier allowed",
			input:      `SELECT "a;b" FROM t`,
			normalized: `SELECT "a;b" FROM t`,
		},
		{
			name:    "empty statement",
			input:   "   ",
			wantErr: ErrEmptyStatement,
		},
		{
			name:    "only a semicolon",
			input:   ";",
			wantErr: ErrEmptyStatement,
		},
		{
			name:       "line comment stripped",
			input:      "SELECT id FROM users -- all of them",
			normalized: "SELECT id FROM users",
		},
		{
			name:       "block comment stripped",
			input:      "SELECT /* hidden */ id FROM users",
			normalized: "SELECT  id FROM users",
		},
		{
			name:    "statement hidden behind comment still detected",
			input:   "SELECT 1 /* */ ; DELETE FROM users",
			wantErr: ErrMultipleStatements,
		},
		{
			name:    "comment only",
			input:   "-- nothing here",
			wantErr: ErrEmptyStatement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateAndNormalize(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, result.Error, tt.wantErr)
				return
			}
			require.NoError(t, result.Error)
			assert.Equal(t, tt.normalized, result.NormalizedSQL)
		})
	}
}

func TestStripComments(t *testing.T) {
	assert.Equal(t, "SELECT 1 ", StripComments("SELECT 1 -- trailing"))
	assert.Equal(t, "SELECT  1", StripComments("SELECT /* inline */ 1"))
	// Comment markers inside literals are preserved.
	assert.Equal(t, "SELECT '--not a comment'", StripComments("SELECT '--not a comment'"))
	assert.Equal(t, "SELECT '/*kept*/'", StripComments("SELECT '/*kept*/'"))
}
