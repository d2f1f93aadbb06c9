// Package scoring turns a transcript, a reference text and a forced
// alignment into a pronunciation score report.
//
// The report layout is a wire contract consumed by downstream clients; the
// JSON keys, including their spaces and capitalisation, must not change.
package scoring

// PhonemeScore describes one expected phoneme of a reference word and what
// the aligner actually observed for it.
type PhonemeScore struct {
	// Phoneme is the expected ARPAbet symbol, stress digit included.
	Phoneme string `json:"phoneme"`
	// Matched reports whether the aligned phone matched exactly
	// (ignoring stress).
	Matched bool `json:"matched"`
	// Duration is the aligned phone's duration in seconds, 0 when the
	// phoneme has no aligned counterpart.
	Duration float64 `json:"duration"`
	// Actual holds the observed phone when it differed from the expected
	// one; empty for exact matches and for missing phones.
	Actual string `json:"actual,omitempty"`
}

// RubricScores carries the three TOEFL-style rubric dimensions, each on a
// 0–100 scale.
type RubricScores struct {
	Accuracy     float64 `json:"Pronunciation Accuracy"`
	Clarity      float64 `json:"Clarity"`
	Completeness float64 `json:"Completeness"`
}

// Report is the complete scoring result for one utterance.
type Report struct {
	Rubric RubricScores `json:"TOEFL-Based Scoring"`
	// Phonemes maps each reference word to its per-phoneme outcomes, in
	// dictionary order.
	Phonemes map[string][]PhonemeScore `json:"Phoneme-Level Scoring"`
	// AlignmentUnavailable is set when no usable alignment existed and the
	// report was produced in degraded, text-only mode.
	AlignmentUnavailable bool `json:"alignment_unavailable,omitempty"`
}
