// Package session retains completed scoring results so that feedback can be
// requested for them later in the process lifetime.
//
// Sessions are write-once: a bundle is stored after a report has been fully
// built and is never updated or evicted afterwards.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/speechlab-io/orthoepy/internal/scoring"
)

// ErrNotFound is returned by Get when no session with the given id exists.
var ErrNotFound = errors.New("session not found")

// Bundle is everything retained about one scored utterance.
type Bundle struct {
	// Reference is the text the speaker was supposed to say.
	Reference string
	// Hypothesis is the ASR transcript.
	Hypothesis string
	// Report is the completed score report.
	Report *scoring.Report
	// MeanPitch is the utterance mean F0 in Hz, 0 when unvoiced.
	MeanPitch float64
	// ExpectedPhonemes maps reference words to their dictionary phonemes.
	ExpectedPhonemes map[string][]string
	// OOVSuggestions maps out-of-vocabulary reference words to phonetically
	// close in-vocabulary words. Empty when every word was found.
	OOVSuggestions map[string][]string
}

// Store retains scored sessions keyed by generated id.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Put stores a bundle and returns its generated session id.
	Put(ctx context.Context, b Bundle) (string, error)

	// Get retrieves a bundle by session id.
	// Returns [ErrNotFound] when no session with that id exists.
	Get(ctx context.Context, id string) (Bundle, error)

	// Len reports the number of stored sessions.
	Len() int
}

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// The zero value is ready to use.
type MemStore struct {
	mu      sync.RWMutex
	bundles map[string]Bundle
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{bundles: make(map[string]Bundle)}
}

// Put implements [Store.Put]. Session ids are UUIDv4.
func (s *MemStore) Put(ctx context.Context, b Bundle) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundles == nil {
		s.bundles = make(map[string]Bundle)
	}
	s.bundles[id] = b
	return id, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bundles[id]
	if !ok {
		return Bundle{}, ErrNotFound
	}
	return b, nil
}

// Len implements [Store.Len].
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bundles)
}
