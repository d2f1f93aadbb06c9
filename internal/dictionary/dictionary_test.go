package dictionary_test

import (
	"strings"
	"testing"

	"github.com/speechlab-io/orthoepy/internal/dictionary"
)

const sampleDict = `;;; test slice of cmudict
THE  DH AH0
THE(2)  DH IY0
QUICK  K W IH1 K
BROWN  B R AW1 N
FOX  F AA1 K S
READ  R IY1 D
READ(2)  R EH1 D
A  AH0
`

func parse(t *testing.T) *dictionary.Dict {
	t.Helper()
	d, err := dictionary.Parse(strings.NewReader(sampleDict))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func TestParse(t *testing.T) {
	t.Parallel()

	d := parse(t)
	if d.Len() != 6 {
		t.Errorf("Len = %d, want 6", d.Len())
	}

	phones, ok := d.Lookup("quick")
	if !ok {
		t.Fatal("Lookup(quick): not found")
	}
	want := []string{"K", "W", "IH1", "K"}
	if len(phones) != len(want) {
		t.Fatalf("Lookup(quick) = %v, want %v", phones, want)
	}
	for i := range want {
		if phones[i] != want[i] {
			t.Fatalf("Lookup(quick) = %v, want %v", phones, want)
		}
	}
}

func TestLookup_PrimaryVariantWins(t *testing.T) {
	t.Parallel()

	d := parse(t)

	// "READ" has two variants; the first file entry is primary.
	phones, ok := d.Lookup("read")
	if !ok {
		t.Fatal("Lookup(read): not found")
	}
	if phones[1] != "IY1" {
		t.Errorf("primary variant = %v, want the R IY1 D entry", phones)
	}
	if got := len(d.Variants("read")); got != 2 {
		t.Errorf("Variants(read) count = %d, want 2", got)
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	t.Parallel()

	d := parse(t)
	if _, ok := d.Lookup("FOX"); !ok {
		t.Error("Lookup should be case-insensitive")
	}
}

func TestParse_RejectsEmptyEntry(t *testing.T) {
	t.Parallel()

	if _, err := dictionary.Parse(strings.NewReader("LONELY\n")); err == nil {
		t.Fatal("Parse accepted an entry without phonemes")
	}
	if _, err := dictionary.Parse(strings.NewReader(";;; only comments\n")); err == nil {
		t.Fatal("Parse accepted an empty dictionary")
	}
}

func TestExpectedPhonemes_KeySetMatchesDistinctWords(t *testing.T) {
	t.Parallel()

	r := dictionary.NewResolver(parse(t))

	expected := r.ExpectedPhonemes("The quick THE brown fox fox")
	wantKeys := []string{"the", "quick", "brown", "fox"}
	if len(expected) != len(wantKeys) {
		t.Fatalf("key count = %d, want %d (%v)", len(expected), len(wantKeys), expected)
	}
	for _, k := range wantKeys {
		if _, ok := expected[k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
}

func TestExpectedPhonemes_NotFoundSentinel(t *testing.T) {
	t.Parallel()

	r := dictionary.NewResolver(parse(t))

	expected := r.ExpectedPhonemes("the zyzzyva")
	seq, ok := expected["zyzzyva"]
	if !ok {
		t.Fatal("missing entry for out-of-vocabulary word")
	}
	if len(seq) != 1 || seq[0] != dictionary.NotFound {
		t.Errorf("OOV sequence = %v, want exactly [%q]", seq, dictionary.NotFound)
	}
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	d := parse(t)

	// "phox" should suggest "fox" (same Double Metaphone code).
	got := d.Suggest("phox", 3)
	found := false
	for _, s := range got {
		if s == "fox" {
			found = true
		}
	}
	if !found {
		t.Errorf("Suggest(phox) = %v, want to contain %q", got, "fox")
	}

	if s := d.Suggest("", 3); s != nil {
		t.Errorf("Suggest(\"\") = %v, want nil", s)
	}
	if s := d.Suggest("fox", 0); s != nil {
		t.Errorf("Suggest with max=0 = %v, want nil", s)
	}
}
