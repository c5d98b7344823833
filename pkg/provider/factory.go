package provider

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/config"
)

// BuildEndpoints turns provider endpoint configuration into managed
// endpoints. API keys are read from the environment variable each endpoint
// names; they never appear in the YAML itself.
func BuildEndpoints(cfgs []config.ProviderEndpointConfig, breaker config.BreakerConfig, logger *zap.Logger) ([]*Endpoint, error) {
	endpoints := make([]*Endpoint, 0, len(cfgs))

	for i := range cfgs {
		ec := &cfgs[i]

		apiKey := ""
		if ec.APIKeyEnv != "" {
			apiKey = os.Getenv(ec.APIKeyEnv)
		}

		var client Client
		var err error
		neverTrips := false

		switch ec.Kind {
		case "openai":
			client, err = NewOpenAIClient(OpenAIConfig{
				BaseURL: ec.BaseURL,
				Model:   ec.Model,
				APIKey:  apiKey,
			}, logger)
		case "anthropic":
			client, err = NewAnthropicClient(AnthropicConfig{
				Model:  ec.Model,
				APIKey: apiKey,
			}, logger)
		case "fallback":
			client = NewFallbackClient()
			neverTrips = true
		default:
			err = fmt.Errorf("unknown kind %q", ec.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("provider endpoint %q: %w", ec.ID, err)
		}

		cb := NewCircuitBreaker(CircuitBreakerConfig{
			Threshold:   breaker.FailureThreshold,
			Cooldown:    breaker.Cooldown,
			CooldownMax: breaker.CooldownMax,
			NeverTrips:  neverTrips,
		})

		endpoints = append(endpoints, NewEndpoint(EndpointConfig{
			ID:            ec.ID,
			Priority:      ec.Priority,
			MaxConcurrent: ec.MaxConcurrent,
			Timeout:       ec.Timeout,
		}, client, cb))
	}

	return endpoints, nil
}
