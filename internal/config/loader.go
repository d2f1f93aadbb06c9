package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":      {"whisper"},
	"aligner":  {"mfa"},
	"feedback": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Environment variable references of the form $VAR or ${VAR} are
// expanded before parsing, so secrets like API keys can stay out of the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg, err := LoadFromReader(strings.NewReader(os.ExpandEnv(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Dictionary
	if cfg.Dictionary.Path == "" {
		errs = append(errs, errors.New("dictionary.path is required"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("aligner", cfg.Providers.Aligner.Name)
	validateProviderName("feedback", cfg.Providers.Feedback.Name)

	if cfg.Providers.ASR.Name == "" {
		errs = append(errs, errors.New("providers.asr.name is required"))
	}
	if cfg.Providers.Aligner.Name == "" {
		slog.Warn("no aligner provider configured; reports will carry text-only scores")
	}
	if cfg.Providers.Feedback.Name == "" {
		slog.Warn("no feedback provider configured; GET /feedback will be unavailable")
	}

	// Scoring
	if t := cfg.Scoring.SubstitutionThreshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("scoring.substitution_threshold %.2f is out of range (0, 1]", t))
	}

	// Prosody
	if p := cfg.Prosody; p.MinPitchHz != 0 || p.MaxPitchHz != 0 {
		if p.MinPitchHz <= 0 || p.MaxPitchHz <= 0 {
			errs = append(errs, errors.New("prosody.min_pitch_hz and prosody.max_pitch_hz must be set together"))
		} else if p.MinPitchHz >= p.MaxPitchHz {
			errs = append(errs, fmt.Errorf("prosody pitch range [%.0f, %.0f] is inverted", p.MinPitchHz, p.MaxPitchHz))
		}
	}
	if v := cfg.Prosody.VoicingThreshold; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("prosody.voicing_threshold %.2f is out of range [0, 1]", v))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
