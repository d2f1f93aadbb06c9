// Package config provides the configuration schema, loader, and provider
// registry for the Orthoepy pronunciation assessment server.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Orthoepy.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Prosody    ProsodyConfig    `yaml:"prosody"`
}

// ServerConfig holds network and logging settings for the server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// DictionaryConfig locates the pronunciation dictionary loaded at startup.
type DictionaryConfig struct {
	// Path is the CMU-format dictionary file (e.g., "cmudict.dict").
	Path string `yaml:"path"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	ASR      ProviderEntry `yaml:"asr"`
	Aligner  ProviderEntry `yaml:"aligner"`
	Feedback ProviderEntry `yaml:"feedback"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "mfa", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// a whisper model file path, or an MFA acoustic model name).
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// ScoringConfig holds tunables for the scoring engine.
type ScoringConfig struct {
	// SubstitutionThreshold is the minimum Jaro-Winkler similarity for an
	// aligned phone to count as a substitution of the expected phoneme.
	// Zero means use the engine default (0.8). Range (0, 1].
	SubstitutionThreshold float64 `yaml:"substitution_threshold"`
}

// ProsodyConfig holds tunables for pitch extraction.
type ProsodyConfig struct {
	// MinPitchHz and MaxPitchHz bound the F0 search range.
	// Zero means use the extractor defaults (75 and 600 Hz).
	MinPitchHz float64 `yaml:"min_pitch_hz"`
	MaxPitchHz float64 `yaml:"max_pitch_hz"`

	// VoicingThreshold is the minimum normalised autocorrelation peak for a
	// frame to count as voiced. Zero means use the extractor default (0.45).
	VoicingThreshold float64 `yaml:"voicing_threshold"`
}
