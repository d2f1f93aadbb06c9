// Package asr defines the Provider interface for speech recognition backends.
//
// Scoring runs on complete utterances, so the interface is one-shot: the full
// clip goes in, the transcript comes out. Implementations must be safe for
// concurrent use; the server calls Transcribe from per-request goroutines
// against a single shared provider.
package asr

import "context"

// Provider is the abstraction over any speech recognition backend.
//
// Callers that hold a provider for the process lifetime must call Close when
// shutting down so the implementation can release model memory or
// connections.
type Provider interface {
	// Transcribe recognises the given mono float32 samples (16 kHz,
	// normalised to [-1, 1]) and returns the transcript text. A clip with
	// no recognisable speech yields an empty string and no error.
	Transcribe(ctx context.Context, samples []float32) (string, error)

	// Close releases provider resources. Safe to call more than once.
	Close() error
}

// SampleRate is the input sample rate every Provider expects, in Hz.
const SampleRate = 16000
