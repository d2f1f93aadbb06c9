package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/speechlab-io/orthoepy/internal/scoring"
	"github.com/speechlab-io/orthoepy/internal/session"
)

func TestMemStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := session.NewMemStore()

	bundle := session.Bundle{
		Reference:  "the quick brown fox",
		Hypothesis: "the quick brown fox",
		Report: &scoring.Report{
			Rubric: scoring.RubricScores{Accuracy: 100, Clarity: 100, Completeness: 100},
		},
		MeanPitch:        182.44,
		ExpectedPhonemes: map[string][]string{"the": {"DH", "AH0"}},
	}

	id, err := store.Put(ctx, bundle)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("Put returned non-UUID id %q: %v", id, err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Reference != bundle.Reference || got.MeanPitch != bundle.MeanPitch {
		t.Errorf("Get = %+v, want %+v", got, bundle)
	}
	if got.Report.Rubric.Completeness != 100 {
		t.Errorf("Report.Completeness = %v, want 100", got.Report.Rubric.Completeness)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestMemStoreUnknownID(t *testing.T) {
	t.Parallel()

	store := session.NewMemStore()
	if _, err := store.Get(context.Background(), uuid.NewString()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestMemStoreZeroValue(t *testing.T) {
	t.Parallel()

	var store session.MemStore
	id, err := store.Put(context.Background(), session.Bundle{Reference: "hello"})
	if err != nil {
		t.Fatalf("Put on zero value: %v", err)
	}
	if _, err := store.Get(context.Background(), id); err != nil {
		t.Fatalf("Get after zero-value Put: %v", err)
	}
}

func TestMemStoreConcurrentPut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := session.NewMemStore()

	const n = 32
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := store.Put(ctx, session.Bundle{Hypothesis: "x"})
			if err != nil {
				t.Errorf("Put: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	if store.Len() != n {
		t.Fatalf("Len = %d, want %d", store.Len(), n)
	}
	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
}
