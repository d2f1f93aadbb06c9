package health

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/speechlab-io/orthoepy/internal/dictionary"
	"github.com/speechlab-io/orthoepy/pkg/provider/llm"
)

// DictionaryLoaded reports ready when the pronunciation dictionary handle is
// present and non-empty.
func DictionaryLoaded(dict *dictionary.Dict) Checker {
	return Checker{
		Name: "dictionary",
		Check: func(_ context.Context) error {
			if dict == nil || dict.Len() == 0 {
				return errors.New("pronunciation dictionary not loaded")
			}
			return nil
		},
	}
}

// AlignerBinary reports ready when the aligner executable can be resolved.
// Bare names are looked up on PATH; paths are checked directly.
func AlignerBinary(binary string) Checker {
	return Checker{
		Name: "aligner",
		Check: func(_ context.Context) error {
			if binary == "" {
				return errors.New("no aligner binary configured")
			}
			if _, err := exec.LookPath(binary); err != nil {
				return fmt.Errorf("aligner binary %q: %w", binary, err)
			}
			return nil
		},
	}
}

// FeedbackConfigured reports ready when a feedback provider is wired.
func FeedbackConfigured(provider llm.Provider) Checker {
	return Checker{
		Name: "feedback",
		Check: func(_ context.Context) error {
			if provider == nil {
				return errors.New("no feedback provider configured")
			}
			return nil
		},
	}
}
