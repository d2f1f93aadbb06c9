package scoring_test

import (
	"errors"
	"testing"

	"github.com/speechlab-io/orthoepy/internal/dictionary"
	"github.com/speechlab-io/orthoepy/internal/scoring"
	"github.com/speechlab-io/orthoepy/internal/textgrid"
)

var foxExpected = map[string][]string{
	"the":   {"DH", "AH0"},
	"quick": {"K", "W", "IH1", "K"},
	"brown": {"B", "R", "AW1", "N"},
	"fox":   {"F", "AA1", "K", "S"},
}

// foxAlignment covers "the quick brown fox" with contiguous word intervals
// and phones filling each word span exactly.
func foxAlignment() *textgrid.TextGrid {
	return &textgrid.TextGrid{
		XMin: 0, XMax: 1.5,
		Tiers: []textgrid.Tier{
			{Name: "words", Intervals: []textgrid.Interval{
				{Label: "the", Start: 0, End: 0.2},
				{Label: "quick", Start: 0.2, End: 0.55},
				{Label: "brown", Start: 0.55, End: 0.9},
				{Label: "fox", Start: 0.9, End: 1.3},
				{Label: "", Start: 1.3, End: 1.5},
			}},
			{Name: "phones", Intervals: []textgrid.Interval{
				{Label: "DH", Start: 0, End: 0.1},
				{Label: "AH0", Start: 0.1, End: 0.2},
				{Label: "K", Start: 0.2, End: 0.3},
				{Label: "W", Start: 0.3, End: 0.38},
				{Label: "IH1", Start: 0.38, End: 0.47},
				{Label: "K", Start: 0.47, End: 0.55},
				{Label: "B", Start: 0.55, End: 0.65},
				{Label: "R", Start: 0.65, End: 0.73},
				{Label: "AW1", Start: 0.73, End: 0.82},
				{Label: "N", Start: 0.82, End: 0.9},
				{Label: "F", Start: 0.9, End: 1},
				{Label: "AA1", Start: 1, End: 1.1},
				{Label: "K", Start: 1.1, End: 1.2},
				{Label: "S", Start: 1.2, End: 1.3},
				{Label: "sil", Start: 1.3, End: 1.5},
			}},
		},
	}
}

func TestScorePerfectUtterance(t *testing.T) {
	t.Parallel()

	e := scoring.NewEngine()
	report, err := e.Score(scoring.Input{
		Reference:  "the quick brown fox",
		Hypothesis: "the quick brown fox",
		Expected:   foxExpected,
		Alignment:  foxAlignment(),
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if report.Rubric.Completeness != 100 {
		t.Errorf("Completeness = %v, want 100", report.Rubric.Completeness)
	}
	if report.Rubric.Accuracy != 100 {
		t.Errorf("Accuracy = %v, want 100", report.Rubric.Accuracy)
	}
	if report.Rubric.Clarity != 100 {
		t.Errorf("Clarity = %v, want 100", report.Rubric.Clarity)
	}
	if report.AlignmentUnavailable {
		t.Error("AlignmentUnavailable set on full alignment")
	}
	if len(report.Phonemes) != 4 {
		t.Fatalf("Phonemes has %d words, want 4", len(report.Phonemes))
	}
	for word, scores := range report.Phonemes {
		for _, ps := range scores {
			if !ps.Matched {
				t.Errorf("word %q phoneme %q not matched", word, ps.Phoneme)
			}
			if ps.Duration <= 0 {
				t.Errorf("word %q phoneme %q has duration %v", word, ps.Phoneme, ps.Duration)
			}
		}
	}
}

func TestScoreDroppedWordCompleteness(t *testing.T) {
	t.Parallel()

	e := scoring.NewEngine()
	report, err := e.Score(scoring.Input{
		Reference:  "the quick brown fox",
		Hypothesis: "the quick fox",
		Expected:   foxExpected,
		Alignment:  foxAlignment(),
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if report.Rubric.Completeness != 75 {
		t.Errorf("Completeness = %v, want 75", report.Rubric.Completeness)
	}
}

func TestScoreCompletenessMonotone(t *testing.T) {
	t.Parallel()

	e := scoring.NewEngine()
	hypotheses := []string{
		"the quick brown fox",
		"the quick brown",
		"the quick",
		"the",
		"",
	}
	prev := 101.0
	for _, hyp := range hypotheses {
		report, err := e.Score(scoring.Input{
			Reference:  "the quick brown fox",
			Hypothesis: hyp,
			Expected:   foxExpected,
			Alignment:  foxAlignment(),
		})
		if err != nil {
			t.Fatalf("Score(%q): %v", hyp, err)
		}
		if report.Rubric.Completeness > prev {
			t.Errorf("Completeness(%q) = %v, rose above %v", hyp, report.Rubric.Completeness, prev)
		}
		prev = report.Rubric.Completeness
	}
}

func TestScoreSubstitution(t *testing.T) {
	t.Parallel()

	tg := foxAlignment()
	phones := tg.Tiers[1].Intervals
	for i := range phones {
		if phones[i].Label == "N" {
			phones[i].Label = "NG"
		}
	}

	e := scoring.NewEngine()
	report, err := e.Score(scoring.Input{
		Reference:  "the quick brown fox",
		Hypothesis: "the quick brown fox",
		Expected:   foxExpected,
		Alignment:  tg,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	var sub scoring.PhonemeScore
	for _, ps := range report.Phonemes["brown"] {
		if ps.Phoneme == "N" {
			sub = ps
		}
	}
	if sub.Matched {
		t.Error("substituted phoneme reported as matched")
	}
	if sub.Actual != "NG" {
		t.Errorf("Actual = %q, want %q", sub.Actual, "NG")
	}
	if sub.Duration <= 0 {
		t.Errorf("substitution duration = %v, want > 0", sub.Duration)
	}
	if report.Rubric.Accuracy != 92.86 {
		t.Errorf("Accuracy = %v, want 92.86 (13 of 14)", report.Rubric.Accuracy)
	}
}

func TestScoreMissingPhone(t *testing.T) {
	t.Parallel()

	tg := foxAlignment()
	// Drop the final S of fox, extending K to cover its span.
	phones := tg.Tiers[1].Intervals
	trimmed := make([]textgrid.Interval, 0, len(phones)-1)
	for _, iv := range phones {
		if iv.Label == "S" {
			trimmed[len(trimmed)-1].End = iv.End
			continue
		}
		trimmed = append(trimmed, iv)
	}
	tg.Tiers[1].Intervals = trimmed

	e := scoring.NewEngine()
	report, err := e.Score(scoring.Input{
		Reference:  "the quick brown fox",
		Hypothesis: "the quick brown fox",
		Expected:   foxExpected,
		Alignment:  tg,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	fox := report.Phonemes["fox"]
	last := fox[len(fox)-1]
	if last.Phoneme != "S" || last.Matched || last.Duration != 0 {
		t.Errorf("missing phone scored as %+v, want unmatched S with zero duration", last)
	}
	if report.Rubric.Accuracy != 92.86 {
		t.Errorf("Accuracy = %v, want 92.86 (13 of 14)", report.Rubric.Accuracy)
	}
}

func TestScoreNoAlignment(t *testing.T) {
	t.Parallel()

	e := scoring.NewEngine()
	report, err := e.Score(scoring.Input{
		Reference:  "the quick brown fox",
		Hypothesis: "the quick brown fox",
		Expected:   foxExpected,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !report.AlignmentUnavailable {
		t.Error("AlignmentUnavailable not set")
	}
	if report.Rubric.Accuracy != 0 || report.Rubric.Clarity != 0 {
		t.Errorf("Accuracy/Clarity = %v/%v, want 0/0 without alignment",
			report.Rubric.Accuracy, report.Rubric.Clarity)
	}
	if report.Rubric.Completeness != 100 {
		t.Errorf("Completeness = %v, want 100 from text alone", report.Rubric.Completeness)
	}
}

func TestScoreEmptyReference(t *testing.T) {
	t.Parallel()

	e := scoring.NewEngine()
	for _, ref := range []string{"", "   \t  "} {
		if _, err := e.Score(scoring.Input{Reference: ref, Hypothesis: "hello"}); !errors.Is(err, scoring.ErrInvalidInput) {
			t.Errorf("Score(reference %q) error = %v, want ErrInvalidInput", ref, err)
		}
	}
}

func TestScoreUnknownWordExcluded(t *testing.T) {
	t.Parallel()

	expected := map[string][]string{
		"the":   {"DH", "AH0"},
		"quick": {"K", "W", "IH1", "K"},
		"brown": {"B", "R", "AW1", "N"},
		"zzyzx": {dictionary.NotFound},
		"fox":   {"F", "AA1", "K", "S"},
	}

	e := scoring.NewEngine()
	report, err := e.Score(scoring.Input{
		Reference:  "the quick brown zzyzx fox",
		Hypothesis: "the quick brown zzyzx fox",
		Expected:   expected,
		Alignment:  foxAlignment(),
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	got := report.Phonemes["zzyzx"]
	if len(got) != 1 || got[0].Phoneme != dictionary.NotFound || got[0].Matched {
		t.Errorf("unknown word scored as %+v, want single unmatched %q entry", got, dictionary.NotFound)
	}
	// The known words still align and match in full.
	if report.Rubric.Accuracy != 100 {
		t.Errorf("Accuracy = %v, want 100 with unknown word excluded", report.Rubric.Accuracy)
	}
}
