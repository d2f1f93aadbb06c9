// Package dictionary loads a CMU-style pronunciation dictionary and resolves
// reference text into expected phoneme sequences.
//
// The dictionary is loaded once at startup into an immutable [Dict] that may
// be shared freely across concurrent scoring requests. Words carry one or more
// pronunciation variants; the primary variant (the headword without an "(n)"
// suffix) is always listed first and is the one resolution returns.
package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// NotFound is the sentinel phoneme emitted for words absent from the
// dictionary. It is carried through to the score report so callers can
// explain degraded confidence for those words. A genuine one-phoneme word
// never produces this value because ARPAbet symbols are uppercase.
const NotFound = "(not found)"

// Dict is an immutable pronunciation dictionary mapping lowercase words to
// their pronunciation variants. Safe for concurrent use after construction.
type Dict struct {
	entries map[string][][]string

	// metaphone indexes headwords by Double Metaphone code for
	// out-of-vocabulary suggestions.
	metaphone map[string][]string
}

// Load reads a CMUdict-format file from path and returns a [Dict].
func Load(path string) (*Dict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: open %q: %w", path, err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("dictionary: parse %q: %w", path, err)
	}
	return d, nil
}

// Parse reads CMUdict-format lines from r. Lines starting with ";;;" are
// comments. Each entry line is "WORD  PH1 PH2 ..." where alternate
// pronunciations carry a "(n)" suffix on the headword, e.g. "READ(2)".
// Useful in tests where dictionaries are constructed from string literals.
func Parse(r io.Reader) (*Dict, error) {
	d := &Dict{
		entries:   make(map[string][][]string),
		metaphone: make(map[string][]string),
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";;;") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: entry %q has no phonemes", lineNo, fields[0])
		}

		head := strings.ToLower(fields[0])
		// Strip the "(n)" alternate marker; ordering in the file keeps the
		// primary variant first for each word.
		if i := strings.IndexByte(head, '('); i > 0 && strings.HasSuffix(head, ")") {
			head = head[:i]
		}

		phones := make([]string, len(fields)-1)
		copy(phones, fields[1:])

		if _, seen := d.entries[head]; !seen {
			d.indexMetaphone(head)
		}
		d.entries[head] = append(d.entries[head], phones)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(d.entries) == 0 {
		return nil, fmt.Errorf("no entries found")
	}
	return d, nil
}

// indexMetaphone records the word under its Double Metaphone codes.
func (d *Dict) indexMetaphone(word string) {
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		d.metaphone[p] = append(d.metaphone[p], word)
	}
	if s != "" && s != p {
		d.metaphone[s] = append(d.metaphone[s], word)
	}
}

// Len returns the number of distinct words in the dictionary.
func (d *Dict) Len() int { return len(d.entries) }

// Lookup returns the primary pronunciation of the lowercase word and whether
// the word is present.
func (d *Dict) Lookup(word string) ([]string, bool) {
	variants, ok := d.entries[strings.ToLower(word)]
	if !ok {
		return nil, false
	}
	return variants[0], true
}

// Variants returns all pronunciations of the word in file order, primary
// first. The returned slices must not be modified.
func (d *Dict) Variants(word string) [][]string {
	return d.entries[strings.ToLower(word)]
}

// Suggest returns up to max in-vocabulary words that are phonetically closest
// to the (typically out-of-vocabulary) word: Double Metaphone candidates
// ranked by Jaro-Winkler similarity. Returns nil when nothing plausible is
// found.
func (d *Dict) Suggest(word string, max int) []string {
	if max <= 0 {
		return nil
	}
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return nil
	}

	p, s := matchr.DoubleMetaphone(w)
	seen := make(map[string]struct{})
	var candidates []string
	for _, code := range []string{p, s} {
		if code == "" {
			continue
		}
		for _, cand := range d.metaphone[code] {
			if cand == w {
				continue
			}
			if _, dup := seen[cand]; dup {
				continue
			}
			seen[cand] = struct{}{}
			candidates = append(candidates, cand)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return matchr.JaroWinkler(w, candidates[i], false) > matchr.JaroWinkler(w, candidates[j], false)
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

// Resolver maps reference text to expected phoneme sequences using a loaded
// [Dict]. It is a pure function over the text and dictionary; safe for
// concurrent use.
type Resolver struct {
	dict *Dict
}

// NewResolver returns a [Resolver] backed by dict.
func NewResolver(dict *Dict) *Resolver {
	return &Resolver{dict: dict}
}

// ExpectedPhonemes returns a mapping from each distinct lowercase word of
// text to its primary pronunciation. Words absent from the dictionary map to
// the single-element sequence [NotFound] — never an empty sequence.
func (r *Resolver) ExpectedPhonemes(text string) map[string][]string {
	words := strings.Fields(strings.ToLower(text))
	expected := make(map[string][]string, len(words))
	for _, word := range words {
		if phones, ok := r.dict.Lookup(word); ok {
			expected[word] = phones
		} else {
			expected[word] = []string{NotFound}
		}
	}
	return expected
}

// IsKnown reports whether word has a dictionary entry.
func (r *Resolver) IsKnown(word string) bool {
	_, ok := r.dict.Lookup(word)
	return ok
}
