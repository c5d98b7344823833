package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferencedTables(t *testing.T) {
	tests := []struct {
		name string
		stmt string
		want []string
	}{
		{"single table", "SELECT id FROM users", []string{"users"}},
		{"join", "SELECT * FROM users u JOIN orders o ON o.user_id = u.id", []string{"users", "orders"}},
		{"comma list", "SELECT * FROM users, orders WHERE users.id = orders.user_id", []string{"users", "orders"}},
		{"subquery", "SELECT * FROM (SELECT id FROM employees) e", []string{"employees"}},
		{"cte", "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent", []string{"orders", "recent"}},
		{"schema qualified", "SELECT id FROM public.users", []string{"public.users"}},
		{"no table", "SELECT 1", nil},
		{"table name in literal ignored", "SELECT id FROM users WHERE note = 'from orders'", []string{"users"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReferencedTables(tt.stmt))
		})
	}
}

func TestAppendConjunctsCreatesWhere(t *testing.T) {
	out, err := appendConjuncts("SELECT id FROM users", []string{"tenant_id = 7"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users WHERE (tenant_id = 7)", out)
}

func TestAppendConjunctsExtendsExistingWhere(t *testing.T) {
	out, err := appendConjuncts("SELECT id FROM users WHERE active", []string{"tenant_id = 7"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users WHERE active AND (tenant_id = 7)", out)
}

func TestAppendConjunctsInsertsBeforeTrailingClauses(t *testing.T) {
	out, err := appendConjuncts(
		"SELECT id FROM users WHERE active ORDER BY id LIMIT 10",
		[]string{"tenant_id = 7"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users WHERE active AND (tenant_id = 7) ORDER BY id LIMIT 10", out)
}

func TestAppendConjunctsGroupBy(t *testing.T) {
	out, err := appendConjuncts(
		"SELECT region, count(*) FROM orders GROUP BY region",
		[]string{"status = 'open'"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT region, count(*) FROM orders WHERE (status = 'open') GROUP BY region", out)
}

func TestAppendConjunctsIgnoresSubqueryWhere(t *testing.T) {
	// The inner WHERE is at depth 1; the outer statement has none, so the
	// predicate lands at the top level.
	out, err := appendConjuncts(
		"SELECT * FROM (SELECT id FROM orders WHERE total > 0) t",
		[]string{"tenant_id = 7"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM (SELECT id FROM orders WHERE total > 0) t WHERE (tenant_id = 7)", out)
}

func TestAppendConjunctsMultiplePredicatesKeepOrder(t *testing.T) {
	out, err := appendConjuncts("SELECT id FROM users",
		[]string{"a = 1", "b = 2", "c = 3"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users WHERE (a = 1) AND (b = 2) AND (c = 3)", out)
}

func TestAppendConjunctsNoPredicatesNoChange(t *testing.T) {
	out, err := appendConjuncts("SELECT id FROM users", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users", out)
}

func TestAppendConjunctsRejectsEmptyPredicate(t *testing.T) {
	_, err := appendConjuncts("SELECT id FROM users", []string{"  "})
	assert.Error(t, err)
}

func TestForbiddenColumnIn(t *testing.T) {
	forbidden := map[string]bool{"salary": true}

	tests := []struct {
		name string
		stmt string
		hit  bool
	}{
		{"clean projection", "SELECT id, name FROM employees", false},
		{"direct projection", "SELECT salary FROM employees", true},
		{"qualified projection", "SELECT e.salary FROM employees e", true},
		{"inside aggregate", "SELECT avg(salary) FROM employees", true},
		{"in predicate", "SELECT id FROM employees WHERE salary > 100000", true},
		{"in ordering", "SELECT id FROM employees ORDER BY salary", true},
		{"star is denied", "SELECT * FROM employees", true},
		{"literal mention is fine", "SELECT id FROM employees WHERE note = 'salary review'", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, hit := forbiddenColumnIn(tt.stmt, forbidden)
			assert.Equal(t, tt.hit, hit)
		})
	}
}

func TestForbiddenColumnInNoRules(t *testing.T) {
	col, hit := forbiddenColumnIn("SELECT * FROM employees", nil)
	assert.False(t, hit)
	assert.Empty(t, col)
}
