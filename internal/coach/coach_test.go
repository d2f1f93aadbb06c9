package coach_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/speechlab-io/orthoepy/internal/coach"
	"github.com/speechlab-io/orthoepy/internal/scoring"
	"github.com/speechlab-io/orthoepy/internal/session"
	"github.com/speechlab-io/orthoepy/pkg/provider/llm"
	"github.com/speechlab-io/orthoepy/pkg/provider/llm/mock"
)

func sampleBundle() session.Bundle {
	return session.Bundle{
		Reference:  "the quick brown fox",
		Hypothesis: "the quick brown box",
		Report: &scoring.Report{
			Rubric: scoring.RubricScores{Accuracy: 85.71, Clarity: 92.5, Completeness: 75},
			Phonemes: map[string][]scoring.PhonemeScore{
				"fox": {{Phoneme: "F", Matched: false, Actual: "B", Duration: 0.08}},
			},
		},
		MeanPitch:        182.44,
		ExpectedPhonemes: map[string][]string{"fox": {"F", "AA1", "K", "S"}},
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	prompt := coach.BuildPrompt(sampleBundle())

	for _, want := range []string{
		`Transcript: "the quick brown box"`,
		`Expected: "the quick brown fox"`,
		"Pronunciation Score: 85.71/100",
		"Fluency Score: 92.5/100",
		"Completeness Score: 75/100",
		"Mean Pitch: 182.44 Hz",
		"Phoneme Issues:",
		"Expected Phonemes:",
		"AA1",
		"Output Format:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptWithOOVSuggestions(t *testing.T) {
	t.Parallel()

	b := sampleBundle()
	if got := coach.BuildPrompt(b); strings.Contains(got, "missing from the pronunciation dictionary") {
		t.Error("suggestion section rendered without any dictionary misses")
	}

	b.OOVSuggestions = map[string][]string{"broun": {"brown", "braun"}}
	prompt := coach.BuildPrompt(b)
	for _, want := range []string{
		"missing from the pronunciation dictionary",
		`"broun"`,
		"brown",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestFeedback(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{Response: &llm.CompletionResponse{Content: "Nice vowels."}}
	c := coach.New(provider, coach.WithTemperature(0.3), coach.WithMaxTokens(256))

	got, err := c.Feedback(context.Background(), sampleBundle())
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if got != "Nice vowels." {
		t.Errorf("Feedback = %q", got)
	}

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0]
	if !strings.Contains(req.SystemPrompt, "pronunciation coach") {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
	if req.Temperature != 0.3 || req.MaxTokens != 256 {
		t.Errorf("request tuning = (%v, %d), want (0.3, 256)", req.Temperature, req.MaxTokens)
	}
}

func TestFeedbackProviderError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("backend down")
	c := coach.New(&mock.Provider{Err: wantErr})

	if _, err := c.Feedback(context.Background(), sampleBundle()); !errors.Is(err, wantErr) {
		t.Fatalf("Feedback error = %v, want wrapped %v", err, wantErr)
	}
}
