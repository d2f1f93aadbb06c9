package scoring

import (
	"errors"
	"math"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/speechlab-io/orthoepy/internal/dictionary"
	"github.com/speechlab-io/orthoepy/internal/textgrid"
)

// ErrInvalidInput is returned when the reference text normalises to nothing,
// so there is no basis to score against.
var ErrInvalidInput = errors.New("scoring: reference text is empty")

// defaultSubstitutionThreshold is the minimum Jaro-Winkler similarity between
// a stress-stripped expected phoneme and an aligned phone for the pair to be
// treated as a substitution rather than a miss.
const defaultSubstitutionThreshold = 0.8

// silenceLabels are aligner phone/word labels that carry no speech content.
var silenceLabels = map[string]bool{
	"": true, "sil": true, "sp": true, "spn": true, "<eps>": true,
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithSubstitutionThreshold overrides the Jaro-Winkler similarity floor for
// counting an aligned phone as a substitution of the expected phoneme.
func WithSubstitutionThreshold(threshold float64) Option {
	return func(e *Engine) {
		e.substitutionThreshold = threshold
	}
}

// Engine scores utterances. Read-only after construction; safe for
// concurrent use.
type Engine struct {
	substitutionThreshold float64
}

// NewEngine returns an [Engine] configured with the supplied options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{substitutionThreshold: defaultSubstitutionThreshold}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Input bundles everything the engine needs for one utterance.
type Input struct {
	// Reference is the text the speaker was supposed to say.
	Reference string
	// Hypothesis is the ASR transcript of what was actually said.
	Hypothesis string
	// Expected maps each reference word to its expected phonemes, with
	// out-of-dictionary words carrying the [dictionary.NotFound] sentinel.
	Expected map[string][]string
	// Alignment is the parsed forced alignment; nil switches the engine to
	// degraded, text-only scoring.
	Alignment *textgrid.TextGrid
}

// Score produces a [Report] for the given input. The reference must contain
// at least one word after normalisation or [ErrInvalidInput] is returned.
// A nil alignment yields Completeness from text alone, Accuracy and Clarity
// of 0, and the AlignmentUnavailable flag set.
func (e *Engine) Score(in Input) (*Report, error) {
	refWords := tokenize(in.Reference)
	if len(refWords) == 0 {
		return nil, ErrInvalidInput
	}
	hypWords := tokenize(in.Hypothesis)

	report := &Report{
		Phonemes: make(map[string][]PhonemeScore),
	}
	report.Rubric.Completeness = round2(completeness(refWords, hypWords))

	if in.Alignment == nil {
		report.AlignmentUnavailable = true
		return report, nil
	}
	wordTier, wok := in.Alignment.WordTier()
	phoneTier, pok := in.Alignment.PhoneTier()
	if !wok || !pok {
		report.AlignmentUnavailable = true
		return report, nil
	}

	var matched, total int
	spans := wordSpans(refWords, wordTier)
	for i, word := range refWords {
		expected := in.Expected[word]
		if len(expected) == 0 || expected[0] == dictionary.NotFound {
			// Out-of-dictionary words are reported but never counted
			// toward accuracy.
			if _, seen := report.Phonemes[word]; !seen {
				report.Phonemes[word] = []PhonemeScore{{Phoneme: dictionary.NotFound}}
			}
			continue
		}
		total += len(expected)

		sp, aligned := spans[i]
		if !aligned {
			if _, seen := report.Phonemes[word]; !seen {
				report.Phonemes[word] = missingAll(expected)
			}
			continue
		}

		scores := e.scoreWord(expected, phonesIn(phoneTier, sp))
		for _, ps := range scores {
			if ps.Matched {
				matched++
			}
		}
		if _, seen := report.Phonemes[word]; !seen {
			report.Phonemes[word] = scores
		}
	}

	if total > 0 {
		report.Rubric.Accuracy = round2(float64(matched) / float64(total) * 100)
	}
	report.Rubric.Clarity = round2(clarity(wordTier, phoneTier))
	return report, nil
}

// tokenize lowercases and splits text on whitespace.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// completeness returns the percentage of reference words preserved in the
// hypothesis under an optimal token-level Levenshtein alignment. Unit costs;
// among equal-cost alignments the leftmost matches win, which the standard
// DP traversal order already guarantees.
func completeness(ref, hyp []string) float64 {
	n, m := len(ref), len(hyp)

	// dp[i][j]: edit distance between ref[:i] and hyp[:j];
	// keep[i][j]: exact matches retained on the best path.
	dp := make([][]int, n+1)
	keep := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
		keep[i] = make([]int, m+1)
		dp[i][0] = i
	}
	for j := 0; j <= m; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			sub := dp[i-1][j-1]
			subKeep := keep[i-1][j-1]
			if ref[i-1] != hyp[j-1] {
				sub++
			} else {
				subKeep++
			}
			del := dp[i-1][j] + 1
			ins := dp[i][j-1] + 1

			best, bestKeep := sub, subKeep
			if del < best || (del == best && keep[i-1][j] > bestKeep) {
				best, bestKeep = del, keep[i-1][j]
			}
			if ins < best || (ins == best && keep[i][j-1] > bestKeep) {
				best, bestKeep = ins, keep[i][j-1]
			}
			dp[i][j], keep[i][j] = best, bestKeep
		}
	}

	return float64(keep[n][m]) / float64(n) * 100
}

// span is a half-open time window taken from a word interval.
type span struct {
	start, end float64
}

// wordSpans assigns each reference word index the time span of its aligned
// word interval, consuming intervals left to right so repeated words map to
// distinct occurrences.
func wordSpans(refWords []string, words textgrid.Tier) map[int]span {
	spans := make(map[int]span, len(refWords))
	next := 0
	for i, word := range refWords {
		for j := next; j < len(words.Intervals); j++ {
			iv := words.Intervals[j]
			if silenceLabels[strings.ToLower(iv.Label)] {
				continue
			}
			if strings.ToLower(iv.Label) == word {
				spans[i] = span{start: iv.Start, end: iv.End}
				next = j + 1
				break
			}
		}
	}
	return spans
}

// phonesIn returns the non-silence phone intervals whose midpoint falls
// inside the word span.
func phonesIn(phones textgrid.Tier, s span) []textgrid.Interval {
	var out []textgrid.Interval
	for _, iv := range phones.Intervals {
		if silenceLabels[strings.ToLower(iv.Label)] {
			continue
		}
		mid := (iv.Start + iv.End) / 2
		if mid >= s.start && mid < s.end {
			out = append(out, iv)
		}
	}
	return out
}

// scoreWord walks the expected phonemes against the aligned phones in order.
// Exact symbol match (stress ignored) advances both sides as a match; a
// near match above the similarity threshold advances both as a substitution;
// anything else marks the expected phoneme missing.
func (e *Engine) scoreWord(expected []string, phones []textgrid.Interval) []PhonemeScore {
	scores := make([]PhonemeScore, 0, len(expected))
	j := 0
	for _, exp := range expected {
		want := stripStress(exp)
		if j >= len(phones) {
			scores = append(scores, PhonemeScore{Phoneme: exp})
			continue
		}
		got := stripStress(phones[j].Label)
		switch {
		case want == got:
			scores = append(scores, PhonemeScore{
				Phoneme:  exp,
				Matched:  true,
				Duration: round4(phones[j].Duration()),
			})
			j++
		case matchr.JaroWinkler(want, got, false) >= e.substitutionThreshold:
			scores = append(scores, PhonemeScore{
				Phoneme:  exp,
				Duration: round4(phones[j].Duration()),
				Actual:   phones[j].Label,
			})
			j++
		default:
			scores = append(scores, PhonemeScore{Phoneme: exp})
		}
	}
	return scores
}

// missingAll marks every expected phoneme of an unaligned word as missing.
func missingAll(expected []string) []PhonemeScore {
	scores := make([]PhonemeScore, len(expected))
	for i, exp := range expected {
		scores[i] = PhonemeScore{Phoneme: exp}
	}
	return scores
}

// clarity is the share of the spoken time span covered by actual phone
// articulation, on a 0–100 scale.
func clarity(words, phones textgrid.Tier) float64 {
	var first, last float64
	found := false
	for _, iv := range words.Intervals {
		if silenceLabels[strings.ToLower(iv.Label)] {
			continue
		}
		if !found {
			first = iv.Start
			found = true
		}
		last = iv.End
	}
	if !found || last <= first {
		return 0
	}

	var spoken float64
	for _, iv := range phones.Intervals {
		if silenceLabels[strings.ToLower(iv.Label)] {
			continue
		}
		spoken += iv.Duration()
	}

	return math.Min(100, math.Max(0, spoken/(last-first)*100))
}

// stripStress removes ARPAbet stress digits and upper-cases the symbol so
// comparisons ignore stress and case.
func stripStress(phoneme string) string {
	return strings.ToUpper(strings.TrimRight(phoneme, "0123456789"))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
