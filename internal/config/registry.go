package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/speechlab-io/orthoepy/pkg/provider/aligner"
	"github.com/speechlab-io/orthoepy/pkg/provider/asr"
	"github.com/speechlab-io/orthoepy/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	asr      map[string]func(ProviderEntry) (asr.Provider, error)
	aligner  map[string]func(ProviderEntry) (aligner.Provider, error)
	feedback map[string]func(ProviderEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr:      make(map[string]func(ProviderEntry) (asr.Provider, error)),
		aligner:  make(map[string]func(ProviderEntry) (aligner.Provider, error)),
		feedback: make(map[string]func(ProviderEntry) (llm.Provider, error)),
	}
}

// RegisterASR registers a speech recognition provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterASR(name string, factory func(ProviderEntry) (asr.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterAligner registers a forced-aligner provider factory under name.
func (r *Registry) RegisterAligner(name string, factory func(ProviderEntry) (aligner.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aligner[name] = factory
}

// RegisterFeedback registers a feedback LLM provider factory under name.
func (r *Registry) RegisterFeedback(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback[name] = factory
}

// CreateASR instantiates a speech recognition provider using the factory
// registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateASR(entry ProviderEntry) (asr.Provider, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAligner instantiates a forced-aligner provider using the factory
// registered under entry.Name.
func (r *Registry) CreateAligner(entry ProviderEntry) (aligner.Provider, error) {
	r.mu.RLock()
	factory, ok := r.aligner[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: aligner/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateFeedback instantiates a feedback LLM provider using the factory
// registered under entry.Name.
func (r *Registry) CreateFeedback(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.feedback[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: feedback/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
