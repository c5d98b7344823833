// Package provider routes text-to-SQL generation across a ranked set of
// model endpoints with per-endpoint circuit breaking and failover.
package provider

import "context"

// Request carries one generation request through the adapter.
type Request struct {
	// Question is the user's natural-language question.
	Question string
	// SchemaContext is the schema and example material given to the model.
	SchemaContext string
}

// Result is the outcome of a successful generation.
type Result struct {
	// SQL is the generated statement, code fences stripped.
	SQL string
	// Confidence is the client's self-reported confidence in [0, 1].
	Confidence float64
	// EndpointID identifies which endpoint produced the statement.
	EndpointID string
	// Model is the model name used by that endpoint.
	Model string
}

// Client is a single model backend capable of turning a question into SQL.
// Implementations must be safe for concurrent use.
type Client interface {
	// GenerateSQL produces a SQL statement for the request. The returned
	// Result has SQL and Confidence populated; the endpoint fills in the rest.
	GenerateSQL(ctx context.Context, req Request) (*Result, error)
	// Model returns the model name for logging and snapshots.
	Model() string
}
