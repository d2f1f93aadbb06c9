// Package textgrid parses Praat TextGrid interval annotations, the artifact
// format emitted by the Montreal Forced Aligner.
//
// Both TextGrid text encodings are supported: the verbose "long" form with
// key = value lines and the compact "short" form that lists bare values. Only
// interval tiers are supported; the aligner never emits point tiers.
//
// A missing artifact file, or one without a phone tier, yields
// [ErrAlignmentMissing] — the recoverable condition the scoring engine
// degrades on (typical cause: the aligner could not align the audio at all).
package textgrid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrAlignmentMissing indicates the alignment artifact does not exist or
// carries no phone tier. Callers should score in degraded mode rather than
// fail the request.
var ErrAlignmentMissing = errors.New("textgrid: alignment missing")

// boundaryEpsilon absorbs floating-point jitter in aligner-emitted interval
// boundaries when checking tier ordering.
const boundaryEpsilon = 1e-6

// Interval is a single labelled time span within a tier. Immutable once parsed.
type Interval struct {
	// Label is the word or phone symbol. Empty labels mark silence/gaps.
	Label string

	// Start and End are boundary times in seconds; Start <= End.
	Start float64
	End   float64
}

// Duration returns the interval length in seconds.
func (iv Interval) Duration() float64 { return iv.End - iv.Start }

// Tier is an ordered, non-overlapping list of intervals under one name.
type Tier struct {
	Name      string
	Intervals []Interval
}

// TextGrid is a parsed interval annotation with one or more tiers.
type TextGrid struct {
	// XMin and XMax bound the annotated time range in seconds.
	XMin, XMax float64

	Tiers []Tier
}

// wordTierNames and phoneTierNames are the tier labels accepted for the two
// tiers the scoring engine consumes. MFA emits "words"/"phones"; some older
// aligner configurations use the singular forms.
var (
	wordTierNames  = map[string]bool{"words": true, "word": true}
	phoneTierNames = map[string]bool{"phones": true, "phone": true}
)

// WordTier returns the word-level tier, if present.
func (tg *TextGrid) WordTier() (Tier, bool) { return tg.findTier(wordTierNames) }

// PhoneTier returns the phone-level tier, if present.
func (tg *TextGrid) PhoneTier() (Tier, bool) { return tg.findTier(phoneTierNames) }

func (tg *TextGrid) findTier(names map[string]bool) (Tier, bool) {
	for _, t := range tg.Tiers {
		if names[strings.ToLower(t.Name)] {
			return t, true
		}
	}
	return Tier{}, false
}

// Load reads the alignment artifact at path. A missing file or an artifact
// without a phone tier returns [ErrAlignmentMissing]; a present but
// unparseable artifact returns a parse error.
func Load(path string) (*TextGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q does not exist", ErrAlignmentMissing, path)
		}
		return nil, fmt.Errorf("textgrid: open %q: %w", path, err)
	}
	defer f.Close()

	tg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("textgrid: parse %q: %w", path, err)
	}
	if _, ok := tg.PhoneTier(); !ok {
		return nil, fmt.Errorf("%w: %q has no phone tier", ErrAlignmentMissing, path)
	}
	return tg, nil
}

// Parse decodes a TextGrid from r. Both the long and short text forms are
// accepted. Interval boundaries are validated: start <= end within each
// interval, and intervals within a tier must be ordered and non-overlapping.
func Parse(r io.Reader) (*TextGrid, error) {
	values, err := tokenize(r)
	if err != nil {
		return nil, err
	}
	p := &parser{values: values}

	fileType, err := p.str("file type")
	if err != nil {
		return nil, err
	}
	if fileType != "ooTextFile" {
		return nil, fmt.Errorf("unexpected file type %q", fileType)
	}
	objClass, err := p.str("object class")
	if err != nil {
		return nil, err
	}
	if objClass != "TextGrid" {
		return nil, fmt.Errorf("unexpected object class %q", objClass)
	}

	tg := &TextGrid{}
	if tg.XMin, err = p.num("xmin"); err != nil {
		return nil, err
	}
	if tg.XMax, err = p.num("xmax"); err != nil {
		return nil, err
	}
	tierCount, err := p.num("tier count")
	if err != nil {
		return nil, err
	}

	for t := 0; t < int(tierCount); t++ {
		tier, err := p.parseTier()
		if err != nil {
			return nil, fmt.Errorf("tier %d: %w", t+1, err)
		}
		tg.Tiers = append(tg.Tiers, tier)
	}
	return tg, nil
}

// tokenize reduces both TextGrid text forms to their ordered value sequence.
// Long-form key = value lines contribute their right-hand side; structural
// lines (item [1]:, tiers? <exists>, blanks) contribute nothing; every other
// line is a bare short-form value. A line that opens with a quote is always
// a short-form string value, so labels containing "=", ":" or "<exists>" do
// not shift the value stream.
func tokenize(r io.Reader) ([]string, error) {
	var values []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, `"`):
			values = append(values, line)
		case strings.HasSuffix(line, ":"):
			// "item []:", "item [1]:", "intervals [3]:"
			continue
		case strings.Contains(line, "<exists>"):
			continue
		case strings.Contains(line, "="):
			_, rhs, _ := strings.Cut(line, "=")
			values = append(values, strings.TrimSpace(rhs))
		default:
			values = append(values, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return values, nil
}

// parser walks the flattened value sequence.
type parser struct {
	values []string
	pos    int
}

func (p *parser) next(what string) (string, error) {
	if p.pos >= len(p.values) {
		return "", fmt.Errorf("truncated artifact: expected %s", what)
	}
	v := p.values[p.pos]
	p.pos++
	return v, nil
}

// str consumes the next value as an unquoted string.
func (p *parser) str(what string) (string, error) {
	v, err := p.next(what)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
	}
	// Praat escapes embedded quotes by doubling them.
	return strings.ReplaceAll(v, `""`, `"`), nil
}

// num consumes the next value as a float.
func (p *parser) num(what string) (float64, error) {
	v, err := p.next(what)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", what, v)
	}
	return f, nil
}

// parseTier consumes one tier: class, name, xmin, xmax, interval count, then
// the intervals themselves.
func (p *parser) parseTier() (Tier, error) {
	class, err := p.str("tier class")
	if err != nil {
		return Tier{}, err
	}
	if class != "IntervalTier" {
		return Tier{}, fmt.Errorf("unsupported tier class %q", class)
	}

	tier := Tier{}
	if tier.Name, err = p.str("tier name"); err != nil {
		return Tier{}, err
	}
	if _, err = p.num("tier xmin"); err != nil {
		return Tier{}, err
	}
	if _, err = p.num("tier xmax"); err != nil {
		return Tier{}, err
	}
	count, err := p.num("interval count")
	if err != nil {
		return Tier{}, err
	}

	prevEnd := 0.0
	for i := 0; i < int(count); i++ {
		var iv Interval
		if iv.Start, err = p.num("interval xmin"); err != nil {
			return Tier{}, err
		}
		if iv.End, err = p.num("interval xmax"); err != nil {
			return Tier{}, err
		}
		if iv.Label, err = p.str("interval text"); err != nil {
			return Tier{}, err
		}
		iv.Label = strings.TrimSpace(iv.Label)

		if iv.Start > iv.End {
			return Tier{}, fmt.Errorf("tier %q interval %d: start %f after end %f", tier.Name, i+1, iv.Start, iv.End)
		}
		if i > 0 && iv.Start < prevEnd-boundaryEpsilon {
			return Tier{}, fmt.Errorf("tier %q interval %d: overlaps previous interval", tier.Name, i+1)
		}
		prevEnd = iv.End
		tier.Intervals = append(tier.Intervals, iv)
	}
	return tier, nil
}
