package provider

import (
	"context"
	"time"
)

// EndpointConfig describes one ranked endpoint in the failover chain.
type EndpointConfig struct {
	// ID identifies the endpoint in logs, stats, and snapshots.
	ID string
	// Priority ranks the endpoint; lower values are tried first.
	Priority int
	// MaxConcurrent bounds in-flight requests to this endpoint.
	MaxConcurrent int
	// Timeout bounds a single generation attempt.
	Timeout time.Duration
}

// Endpoint couples a model client with its circuit breaker, concurrency
// bound, and per-attempt timeout.
type Endpoint struct {
	id       string
	priority int
	client   Client
	breaker  *CircuitBreaker
	sem      chan struct{}
	timeout  time.Duration
}

// NewEndpoint wraps a client into a managed endpoint.
func NewEndpoint(cfg EndpointConfig, client Client, breaker *CircuitBreaker) *Endpoint {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Endpoint{
		id:       cfg.ID,
		priority: cfg.Priority,
		client:   client,
		breaker:  breaker,
		sem:      make(chan struct{}, maxConcurrent),
		timeout:  timeout,
	}
}

// ID returns the endpoint identifier.
func (e *Endpoint) ID() string { return e.id }

// Breaker exposes the endpoint's circuit breaker.
func (e *Endpoint) Breaker() *CircuitBreaker { return e.breaker }

// generate runs one bounded attempt against the backing client. The breaker
// is consulted and updated by the adapter, not here.
func (e *Endpoint) generate(ctx context.Context, req Request) (*Result, error) {
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := e.client.GenerateSQL(attemptCtx, req)
	if err != nil {
		return nil, err
	}

	result.EndpointID = e.id
	if result.Model == "" {
		result.Model = e.client.Model()
	}
	return result, nil
}
