// Package coach turns a stored scoring session into natural-language
// pronunciation feedback via an LLM backend.
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/speechlab-io/orthoepy/internal/session"
	"github.com/speechlab-io/orthoepy/pkg/provider/llm"
)

// systemPrompt frames every feedback completion.
const systemPrompt = "You are a helpful, friendly English pronunciation coach."

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

// Option is a functional option for configuring a [Coach].
type Option func(*Coach)

// WithTemperature sets the completion temperature. Default: 0.7.
func WithTemperature(t float64) Option {
	return func(c *Coach) { c.temperature = t }
}

// WithMaxTokens caps the completion length. Default: 1024.
func WithMaxTokens(n int) Option {
	return func(c *Coach) { c.maxTokens = n }
}

// Coach generates feedback text for scored sessions. Safe for concurrent use
// when the underlying provider is.
type Coach struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
}

// New returns a Coach backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Coach {
	c := &Coach{
		provider:    provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Feedback builds the coaching prompt from the session bundle and returns the
// model's reply.
func (c *Coach) Feedback(ctx context.Context, b session.Bundle) (string, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: BuildPrompt(b)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("coach: feedback completion: %w", err)
	}
	return resp.Content, nil
}

// BuildPrompt renders the analysis prompt sent as the user message. The
// structure mirrors what the scoring report carries: transcript versus
// expected text, the three rubric scores, mean pitch, the per-word phoneme
// breakdown, and nearby-word hints for any dictionary misses.
func BuildPrompt(b session.Bundle) string {
	var sb strings.Builder

	sb.WriteString("You are an expert English pronunciation coach.\n")
	sb.WriteString("Analyze the following speech feedback data and generate helpful, motivating feedback.\n")
	sb.WriteString("Identify what the speaker did well, where they struggled, and give specific advice on how to improve.\n\n")

	fmt.Fprintf(&sb, "Transcript: %q\n", b.Hypothesis)
	fmt.Fprintf(&sb, "Expected: %q\n\n", b.Reference)

	if b.Report != nil {
		fmt.Fprintf(&sb, "Pronunciation Score: %v/100\n", b.Report.Rubric.Accuracy)
		fmt.Fprintf(&sb, "Fluency Score: %v/100\n", b.Report.Rubric.Clarity)
		fmt.Fprintf(&sb, "Completeness Score: %v/100\n", b.Report.Rubric.Completeness)
	}
	fmt.Fprintf(&sb, "Mean Pitch: %v Hz\n\n", b.MeanPitch)

	sb.WriteString("Phoneme Issues:\n")
	if b.Report != nil {
		sb.WriteString(renderJSON(b.Report.Phonemes))
	}
	sb.WriteString("\n\nExpected Phonemes:\n")
	sb.WriteString(renderJSON(b.ExpectedPhonemes))
	if len(b.OOVSuggestions) > 0 {
		sb.WriteString("\n\nWords missing from the pronunciation dictionary, with the closest known words:\n")
		sb.WriteString(renderJSON(b.OOVSuggestions))
	}
	sb.WriteString("\n\nOutput Format:\n")
	sb.WriteString("- Summary of overall performance (1 paragraph)\n")
	sb.WriteString("- List of specific pronunciation problems and what to practice\n")
	sb.WriteString("- Prosody suggestions (intonation, pitch)\n")
	sb.WriteString("- Encouraging closing sentence\n")

	return sb.String()
}

// renderJSON pretty-prints v for prompt inclusion. Marshal failures degrade
// to an empty object rather than aborting feedback.
func renderJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
