// Package aligner defines the Provider interface for forced-alignment
// backends.
//
// A forced aligner takes an utterance recording plus the text that was read
// and produces time-aligned word and phone annotations as a Praat TextGrid
// artifact on disk. Implementations must be safe for concurrent use.
package aligner

import (
	"context"
	"errors"
)

// ErrToolFailure is returned when the alignment tool itself failed: a
// non-zero exit, a killed process, or a deadline hit mid-run. It is distinct
// from the recoverable case of a tool run that completed without producing
// an artifact for the utterance.
var ErrToolFailure = errors.New("aligner: tool failure")

// AlignRequest describes one utterance to align.
type AlignRequest struct {
	// AudioPath is the utterance WAV file.
	AudioPath string

	// UtteranceID names the utterance inside the corpus; the artifact is
	// emitted under this name. Must be non-empty and filesystem-safe.
	UtteranceID string

	// Reference is the text the speaker read.
	Reference string

	// WorkDir is a request-scoped scratch directory the provider may fill
	// with corpus and output files. The caller owns its lifetime.
	WorkDir string
}

// Provider is the abstraction over any forced-alignment backend.
type Provider interface {
	// Align runs the aligner and returns the path where the utterance's
	// TextGrid artifact is expected. The file may legitimately be absent
	// when the aligner could not align the utterance; callers treat that
	// as the recoverable missing-alignment case. Tool-level failures are
	// reported as [ErrToolFailure].
	Align(ctx context.Context, req AlignRequest) (string, error)
}
