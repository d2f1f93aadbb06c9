// Command orthoepy is the main entry point for the Orthoepy pronunciation
// assessment server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/speechlab-io/orthoepy/internal/coach"
	"github.com/speechlab-io/orthoepy/internal/config"
	"github.com/speechlab-io/orthoepy/internal/dictionary"
	"github.com/speechlab-io/orthoepy/internal/health"
	"github.com/speechlab-io/orthoepy/internal/observe"
	"github.com/speechlab-io/orthoepy/internal/prosody"
	"github.com/speechlab-io/orthoepy/internal/resilience"
	"github.com/speechlab-io/orthoepy/internal/scoring"
	"github.com/speechlab-io/orthoepy/internal/server"
	"github.com/speechlab-io/orthoepy/internal/session"
	"github.com/speechlab-io/orthoepy/pkg/provider/aligner"
	"github.com/speechlab-io/orthoepy/pkg/provider/aligner/mfa"
	"github.com/speechlab-io/orthoepy/pkg/provider/asr"
	"github.com/speechlab-io/orthoepy/pkg/provider/asr/whisper"
	"github.com/speechlab-io/orthoepy/pkg/provider/llm"
	"github.com/speechlab-io/orthoepy/pkg/provider/llm/anyllm"
	oaillm "github.com/speechlab-io/orthoepy/pkg/provider/llm/openai"
)

// shutdownTimeout bounds graceful HTTP shutdown and telemetry flushing.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A .env file is optional; environment variables referenced from the
	// config (API keys, mostly) may come from anywhere.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "orthoepy: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "orthoepy: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("orthoepy starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "orthoepy"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer func() {
		if err := providers.ASR.Close(); err != nil {
			slog.Warn("asr close error", "err", err)
		}
	}()

	dict, err := dictionary.Load(cfg.Dictionary.Path)
	if err != nil {
		slog.Error("failed to load dictionary", "err", err)
		return 1
	}
	slog.Info("dictionary loaded", "path", cfg.Dictionary.Path, "entries", dict.Len())

	var engineOpts []scoring.Option
	if cfg.Scoring.SubstitutionThreshold > 0 {
		engineOpts = append(engineOpts, scoring.WithSubstitutionThreshold(cfg.Scoring.SubstitutionThreshold))
	}
	engine := scoring.NewEngine(engineOpts...)

	var prosodyOpts []prosody.Option
	if cfg.Prosody.MinPitchHz > 0 && cfg.Prosody.MaxPitchHz > 0 {
		prosodyOpts = append(prosodyOpts, prosody.WithPitchRange(cfg.Prosody.MinPitchHz, cfg.Prosody.MaxPitchHz))
	}
	if cfg.Prosody.VoicingThreshold > 0 {
		prosodyOpts = append(prosodyOpts, prosody.WithVoicingThreshold(cfg.Prosody.VoicingThreshold))
	}

	checkers := []health.Checker{health.DictionaryLoaded(dict)}
	if providers.AlignerBinary != "" {
		checkers = append(checkers, health.AlignerBinary(providers.AlignerBinary))
	}

	var feedbackCoach *coach.Coach
	if providers.Feedback != nil {
		feedbackCoach = coach.New(providers.Feedback)
		checkers = append(checkers, health.FeedbackConfigured(providers.Feedback))
	}

	srv, err := server.New(server.Deps{
		Dict:     dict,
		ASR:      providers.ASR,
		Aligner:  providers.Aligner,
		Coach:    feedbackCoach,
		Engine:   engine,
		Prosody:  prosody.New(prosodyOpts...),
		Sessions: session.NewMemStore(),
		Health:   health.New(checkers...),
	})
	if err != nil {
		slog.Error("failed to initialise server", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			slog.Info("listening with TLS", "addr", cfg.Server.ListenAddr)
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			slog.Info("listening", "addr", cfg.Server.ListenAddr)
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providerSet holds the instantiated pipeline providers. AlignerBinary keeps
// the forced-alignment executable path for the readiness probe.
type providerSet struct {
	ASR           asr.Provider
	Aligner       aligner.Provider
	AlignerBinary string
	Feedback      llm.Provider
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if threads := optInt(entry.Options, "threads"); threads > 0 {
			opts = append(opts, whisper.WithThreads(uint(threads)))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── Forced alignment ──────────────────────────────────────────────────────

	reg.RegisterAligner("mfa", func(entry config.ProviderEntry) (aligner.Provider, error) {
		var opts []mfa.Option
		if bin := optString(entry.Options, "binary"); bin != "" {
			opts = append(opts, mfa.WithBinary(bin))
		}
		if dict := optString(entry.Options, "dictionary"); dict != "" {
			opts = append(opts, mfa.WithDictionary(dict))
		}
		if entry.Model != "" {
			opts = append(opts, mfa.WithAcousticModel(entry.Model))
		}
		return mfa.New(opts...), nil
	})

	// ── Feedback LLMs ─────────────────────────────────────────────────────────
	// "openai" talks to the OpenAI API (or a compatible endpoint) directly;
	// the remaining names go through the any-llm multi-backend client.

	reg.RegisterFeedback("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterFeedback(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterFeedback("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry.
// ASR is mandatory; the aligner and feedback providers degrade their routes
// when absent.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	asrEntry := cfg.Providers.ASR
	p, err := reg.CreateASR(asrEntry)
	if err != nil {
		return nil, fmt.Errorf("create asr provider %q: %w", asrEntry.Name, err)
	}
	ps.ASR = p
	slog.Info("provider created", "kind", "asr", "name", asrEntry.Name)

	if name := cfg.Providers.Aligner.Name; name != "" {
		a, err := reg.CreateAligner(cfg.Providers.Aligner)
		if err != nil {
			return nil, fmt.Errorf("create aligner provider %q: %w", name, err)
		}
		if m, ok := a.(*mfa.Provider); ok {
			ps.AlignerBinary = m.Binary()
		}
		ps.Aligner = resilience.NewAlignerBreaker(a, resilience.CircuitBreakerConfig{Name: "aligner"})
		slog.Info("provider created", "kind", "aligner", "name", name)
	} else {
		slog.Warn("no aligner configured — reports will be text-only")
	}

	if name := cfg.Providers.Feedback.Name; name != "" {
		primary, err := reg.CreateFeedback(cfg.Providers.Feedback)
		if err != nil {
			return nil, fmt.Errorf("create feedback provider %q: %w", name, err)
		}
		ps.Feedback = wrapFeedback(reg, cfg.Providers.Feedback, primary)
		slog.Info("provider created", "kind", "feedback", "name", name)
	} else {
		slog.Warn("no feedback provider configured — /feedback will be unavailable")
	}

	return ps, nil
}

// wrapFeedback puts the primary feedback provider behind a circuit breaker and
// registers any fallback backends declared in the provider's options:
//
//	feedback:
//	  name: openai
//	  options:
//	    fallbacks:
//	      - name: ollama
//	        model: llama3
func wrapFeedback(reg *config.Registry, entry config.ProviderEntry, primary llm.Provider) llm.Provider {
	fb := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})

	raw, ok := entry.Options["fallbacks"].([]any)
	if !ok {
		return fb
	}
	for _, item := range raw {
		fields, ok := item.(map[string]any)
		if !ok {
			slog.Warn("skipping malformed feedback fallback entry")
			continue
		}
		sub := config.ProviderEntry{
			Name:    optString(fields, "name"),
			APIKey:  optString(fields, "api_key"),
			BaseURL: optString(fields, "base_url"),
			Model:   optString(fields, "model"),
		}
		backup, err := reg.CreateFeedback(sub)
		if err != nil {
			slog.Warn("skipping feedback fallback", "name", sub.Name, "err", err)
			continue
		}
		fb.AddFallback(sub.Name, backup)
		slog.Info("feedback fallback registered", "name", sub.Name)
	}
	return fb
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Orthoepy — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("ASR", cfg.Providers.ASR.Name, cfg.Providers.ASR.Model)
	printProvider("Aligner", cfg.Providers.Aligner.Name, cfg.Providers.Aligner.Model)
	printProvider("Feedback", cfg.Providers.Feedback.Name, cfg.Providers.Feedback.Model)
	fmt.Printf("║  Dictionary      : %-19s ║\n", trim19(cfg.Dictionary.Path))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, trim19(value))
}

func trim19(value string) string {
	if len(value) > 19 {
		return value[:16] + "…"
	}
	return value
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map[string]any.
// YAML decodes integers as int; returns 0 when the key is absent or not an int.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	n, _ := opts[key].(int)
	return n
}
