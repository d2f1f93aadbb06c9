// Package mock provides a test double for the asr package interface.
//
// Set Text to control the transcript returned, or Err to force a failure;
// TranscribeCalls records every invocation for assertions.
package mock

import (
	"context"
	"sync"

	"github.com/speechlab-io/orthoepy/pkg/provider/asr"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Samples is the audio passed to Transcribe.
	Samples []float32
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Text is the transcript returned by Transcribe.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall

	// Closed reports whether Close has been called.
	Closed bool
}

// Transcribe records the call and returns Text, Err.
func (p *Provider) Transcribe(ctx context.Context, samples []float32) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Samples: samples})
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// Close marks the provider closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
