// Package logging builds the shared zap logger and provides helpers for
// scrubbing sensitive material before it reaches log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger constructs the root zap logger for the given environment.
// "local" and "dev" get the development console encoder; everything else
// gets production JSON output suitable for log aggregation.
func NewLogger(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)

	switch env {
	case "local", "dev":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger for env %q: %w", env, err)
	}

	return logger, nil
}
