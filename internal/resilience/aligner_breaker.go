package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/speechlab-io/orthoepy/pkg/provider/aligner"
)

// AlignerBreaker wraps an [aligner.Provider] with a circuit breaker so a
// repeatedly failing alignment tool stops being launched for every request.
// An open breaker reports as a tool failure, which callers already treat as
// the fatal (non-degradable) alignment outcome.
type AlignerBreaker struct {
	provider aligner.Provider
	breaker  *CircuitBreaker
}

// Compile-time interface assertion.
var _ aligner.Provider = (*AlignerBreaker)(nil)

// NewAlignerBreaker wraps provider with a breaker tuned by cfg.
func NewAlignerBreaker(provider aligner.Provider, cfg CircuitBreakerConfig) *AlignerBreaker {
	if cfg.Name == "" {
		cfg.Name = "aligner"
	}
	return &AlignerBreaker{
		provider: provider,
		breaker:  NewCircuitBreaker(cfg),
	}
}

// Align forwards to the wrapped provider while the breaker permits it.
func (a *AlignerBreaker) Align(ctx context.Context, req aligner.AlignRequest) (string, error) {
	var artifact string
	err := a.breaker.Execute(func() error {
		var execErr error
		artifact, execErr = a.provider.Align(ctx, req)
		return execErr
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", fmt.Errorf("aligner: %w: %w", aligner.ErrToolFailure, err)
		}
		return "", err
	}
	return artifact, nil
}
