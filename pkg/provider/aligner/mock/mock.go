// Package mock provides a test double for the aligner package interface.
//
// Set ArtifactPath to control what Align returns, or Err to force a failure;
// AlignCalls records every invocation for assertions.
package mock

import (
	"context"
	"sync"

	"github.com/speechlab-io/orthoepy/pkg/provider/aligner"
)

// Compile-time assertion that Provider satisfies aligner.Provider.
var _ aligner.Provider = (*Provider)(nil)

// Provider is a mock implementation of aligner.Provider.
type Provider struct {
	mu sync.Mutex

	// ArtifactPath is returned by Align.
	ArtifactPath string

	// Err, if non-nil, is returned as the error from Align.
	Err error

	// AlignCalls records every request passed to Align.
	AlignCalls []aligner.AlignRequest
}

// Align records the call and returns ArtifactPath, Err.
func (p *Provider) Align(ctx context.Context, req aligner.AlignRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AlignCalls = append(p.AlignCalls, req)
	if p.Err != nil {
		return "", p.Err
	}
	return p.ArtifactPath, nil
}
