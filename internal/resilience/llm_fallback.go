package resilience

import (
	"context"

	"github.com/speechlab-io/orthoepy/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over across a chain of LLM
// backends. Every backend carries its own circuit breaker, so a provider
// whose API is down gets skipped without burning a request on it.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback builds a failover chain with primary as the first backend
// tried on every request.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends another backend to the end of the chain.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete asks the first healthy backend for a completion, walking down
// the chain until one answers or all have failed.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
