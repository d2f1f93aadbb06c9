package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/speechlab-io/orthoepy/internal/config"
	"github.com/speechlab-io/orthoepy/pkg/provider/asr"
	asrmock "github.com/speechlab-io/orthoepy/pkg/provider/asr/mock"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
dictionary:
  path: testdata/cmudict.dict
providers:
  asr:
    name: whisper
    model: models/ggml-base.en.bin
  aligner:
    name: mfa
    model: english
  feedback:
    name: openai
    api_key: sk-test
    model: gpt-4o
scoring:
  substitution_threshold: 0.8
prosody:
  min_pitch_hz: 75
  max_pitch_hz: 600
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.ASR.Name != "whisper" || cfg.Providers.ASR.Model != "models/ggml-base.en.bin" {
		t.Errorf("ASR entry = %+v", cfg.Providers.ASR)
	}
	if cfg.Scoring.SubstitutionThreshold != 0.8 {
		t.Errorf("SubstitutionThreshold = %v", cfg.Scoring.SubstitutionThreshold)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("ORTHOEPY_TEST_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := strings.Replace(validYAML, "sk-test", "${ORTHOEPY_TEST_KEY}", 1)
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Providers.Feedback.APIKey; got != "sk-from-env" {
		t.Errorf("api_key = %q, want value from environment", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	t.Parallel()

	yaml := validYAML + "\nbogus_section:\n  x: 1\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("LoadFromReader accepted unknown top-level field")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: "loud"},
		Scoring: config.ScoringConfig{
			SubstitutionThreshold: 1.5,
		},
		Prosody: config.ProsodyConfig{MinPitchHz: 600, MaxPitchHz: 75},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted invalid config")
	}
	for _, want := range []string{"log_level", "dictionary.path", "asr.name", "substitution_threshold", "inverted"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestValidateTLSPair(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.TLS = &config.TLSConfig{CertFile: "cert.pem"}
	if err := config.Validate(cfg); err == nil || !strings.Contains(err.Error(), "key_file") {
		t.Fatalf("Validate error = %v, want missing key_file", err)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	r.RegisterASR("mock", func(entry config.ProviderEntry) (asr.Provider, error) {
		return &asrmock.Provider{Text: entry.Model}, nil
	})

	p, err := r.CreateASR(config.ProviderEntry{Name: "mock", Model: "hello"})
	if err != nil {
		t.Fatalf("CreateASR: %v", err)
	}
	if p == nil {
		t.Fatal("CreateASR returned nil provider")
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	if _, err := r.CreateASR(config.ProviderEntry{Name: "ghost"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateASR error = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateAligner(config.ProviderEntry{Name: "ghost"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateAligner error = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateFeedback(config.ProviderEntry{Name: "ghost"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateFeedback error = %v, want ErrProviderNotRegistered", err)
	}
}
