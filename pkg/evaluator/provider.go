package evaluator

import (
	"context"
	"errors"
	"fmt"
)

// Provider is a generative-text backend capable of a single prompt/response
// exchange. jsonMode asks the backend to emit a raw JSON object where the
// API supports it; backends without such a switch rely on the prompt alone.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// Error is a classified provider failure.
type Error struct {
	Provider    string
	Status      int
	Message     string
	RateLimited bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsRateLimit reports whether err carries a rate-limit signal from any
// provider. Only these failures are worth retrying.
func IsRateLimit(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.RateLimited
}
