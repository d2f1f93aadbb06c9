// Package mfa implements aligner.Provider by shelling out to the Montreal
// Forced Aligner command-line tool.
package mfa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/speechlab-io/orthoepy/pkg/provider/aligner"
)

const (
	defaultBinary        = "mfa"
	defaultDictionary    = "english"
	defaultAcousticModel = "english"

	// outputTail caps how much tool output is carried into error messages.
	outputTail = 2048
)

// Compile-time assertion that Provider satisfies aligner.Provider.
var _ aligner.Provider = (*Provider)(nil)

// Provider runs the mfa binary once per request. Read-only after
// construction; safe for concurrent use, each Align call works in its own
// request-scoped directory.
type Provider struct {
	binary        string
	dictionary    string
	acousticModel string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBinary sets the mfa executable path. Defaults to "mfa" resolved via
// PATH.
func WithBinary(path string) Option {
	return func(p *Provider) { p.binary = path }
}

// WithDictionary sets the pronunciation dictionary name or path passed to
// mfa align. Defaults to "english".
func WithDictionary(name string) Option {
	return func(p *Provider) { p.dictionary = name }
}

// WithAcousticModel sets the acoustic model name or path passed to mfa
// align. Defaults to "english".
func WithAcousticModel(name string) Option {
	return func(p *Provider) { p.acousticModel = name }
}

// New returns a Provider configured with the supplied options.
func New(opts ...Option) *Provider {
	p := &Provider{
		binary:        defaultBinary,
		dictionary:    defaultDictionary,
		acousticModel: defaultAcousticModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Binary returns the configured executable path, for readiness probing.
func (p *Provider) Binary() string { return p.binary }

// Align implements [aligner.Provider.Align]. It lays out a one-utterance
// corpus under req.WorkDir, invokes
//
//	mfa align <corpus> <dictionary> <acoustic-model> <out> --clean
//
// and returns the expected TextGrid path. The tool not emitting a TextGrid
// is left for the caller to discover; only process-level failures return
// [aligner.ErrToolFailure].
func (p *Provider) Align(ctx context.Context, req aligner.AlignRequest) (string, error) {
	if req.UtteranceID == "" {
		return "", fmt.Errorf("mfa: utterance id must not be empty")
	}

	corpusDir := filepath.Join(req.WorkDir, "corpus")
	outDir := filepath.Join(req.WorkDir, "aligned")
	for _, dir := range []string{corpusDir, outDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mfa: create %s: %w", dir, err)
		}
	}

	if err := copyFile(req.AudioPath, filepath.Join(corpusDir, req.UtteranceID+".wav")); err != nil {
		return "", fmt.Errorf("mfa: stage audio: %w", err)
	}

	transcript := req.UtteranceID + " " + strings.TrimSpace(req.Reference) + "\n"
	labPath := filepath.Join(corpusDir, req.UtteranceID+".lab")
	if err := os.WriteFile(labPath, []byte(transcript), 0o644); err != nil {
		return "", fmt.Errorf("mfa: write transcript: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"align", corpusDir, p.dictionary, p.acousticModel, outDir, "--clean")
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %v", aligner.ErrToolFailure, ctxErr)
		}
		slog.Error("mfa: align failed", "utterance_id", req.UtteranceID, "error", err)
		return "", fmt.Errorf("%w: %v: %s", aligner.ErrToolFailure, err, tail(out))
	}

	return filepath.Join(outDir, req.UtteranceID+".TextGrid"), nil
}

// copyFile copies src to dst, truncating dst if it exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// tail returns the last chunk of tool output for error messages.
func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > outputTail {
		s = s[len(s)-outputTail:]
	}
	return s
}
