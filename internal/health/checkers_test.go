package health

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/speechlab-io/orthoepy/internal/dictionary"
	"github.com/speechlab-io/orthoepy/pkg/provider/llm/mock"
)

func TestDictionaryLoaded(t *testing.T) {
	if err := DictionaryLoaded(nil).Check(context.Background()); err == nil {
		t.Error("nil dictionary reported ready")
	}

	dict, err := dictionary.Parse(strings.NewReader("HELLO HH AH0 L OW1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := DictionaryLoaded(dict).Check(context.Background()); err != nil {
		t.Errorf("loaded dictionary reported unready: %v", err)
	}
}

func TestAlignerBinary(t *testing.T) {
	if err := AlignerBinary("").Check(context.Background()); err == nil {
		t.Error("empty binary reported ready")
	}
	if err := AlignerBinary("no-such-tool-zzz").Check(context.Background()); err == nil {
		t.Error("unresolvable binary reported ready")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "mfa")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := AlignerBinary(bin).Check(context.Background()); err != nil {
		t.Errorf("executable path reported unready: %v", err)
	}
}

func TestFeedbackConfigured(t *testing.T) {
	if err := FeedbackConfigured(nil).Check(context.Background()); err == nil {
		t.Error("nil provider reported ready")
	}
	if err := FeedbackConfigured(&mock.Provider{}).Check(context.Background()); err != nil {
		t.Errorf("configured provider reported unready: %v", err)
	}
}
