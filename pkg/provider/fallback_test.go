package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fallbackSchema = `
CREATE TABLE users (id uuid, name text);
CREATE TABLE orders (id uuid, user_id uuid, total numeric);
`

func TestFallbackPrefersMentionedTable(t *testing.T) {
	c := NewFallbackClient()

	result, err := c.GenerateSQL(context.Background(), Request{
		Question:      "show me recent orders",
		SchemaContext: fallbackSchema,
	})

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders LIMIT 100", result.SQL)
	assert.Equal(t, fallbackConfidence, result.Confidence)
}

func TestFallbackMatchesSingularForm(t *testing.T) {
	c := NewFallbackClient()

	result, err := c.GenerateSQL(context.Background(), Request{
		Question:      "find a user by name",
		SchemaContext: fallbackSchema,
	})

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", result.SQL)
}

func TestFallbackDefaultsToFirstTable(t *testing.T) {
	c := NewFallbackClient()

	result, err := c.GenerateSQL(context.Background(), Request{
		Question:      "what happened yesterday",
		SchemaContext: fallbackSchema,
	})

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", result.SQL)
}

func TestFallbackErrorsWithoutTables(t *testing.T) {
	c := NewFallbackClient()

	_, err := c.GenerateSQL(context.Background(), Request{Question: "anything"})
	assert.Error(t, err)
}

func TestFallbackIsDeterministic(t *testing.T) {
	c := NewFallbackClient()
	req := Request{Question: "show me recent orders", SchemaContext: fallbackSchema}

	first, err := c.GenerateSQL(context.Background(), req)
	require.NoError(t, err)
	second, err := c.GenerateSQL(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.SQL, second.SQL)
}
