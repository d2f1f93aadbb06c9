// Package server exposes the scoring pipeline over HTTP.
//
// Routes:
//
//   - POST /score               — score an uploaded utterance
//   - GET  /feedback/{session_id} — coaching feedback for a scored session
//   - GET  /healthz, /readyz    — probes
//   - GET  /metrics             — Prometheus scrape endpoint
package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speechlab-io/orthoepy/internal/coach"
	"github.com/speechlab-io/orthoepy/internal/dictionary"
	"github.com/speechlab-io/orthoepy/internal/health"
	"github.com/speechlab-io/orthoepy/internal/observe"
	"github.com/speechlab-io/orthoepy/internal/prosody"
	"github.com/speechlab-io/orthoepy/internal/scoring"
	"github.com/speechlab-io/orthoepy/internal/session"
	"github.com/speechlab-io/orthoepy/pkg/provider/aligner"
	"github.com/speechlab-io/orthoepy/pkg/provider/asr"
)

// maxUploadBytes bounds the request body and multipart form memory for
// audio uploads.
const maxUploadBytes = 32 << 20

// maxSuggestions caps the nearby-word lookups recorded per out-of-vocabulary
// reference word.
const maxSuggestions = 3

// Deps carries everything the server needs. Dict, ASR, Engine, Prosody and
// Sessions are required; Aligner and Coach may be nil, degrading the
// affected routes.
type Deps struct {
	Dict     *dictionary.Dict
	ASR      asr.Provider
	Aligner  aligner.Provider
	Coach    *coach.Coach
	Engine   *scoring.Engine
	Prosody  *prosody.Extractor
	Sessions session.Store
	Metrics  *observe.Metrics
	Health   *health.Handler
}

// Server handles scoring and feedback requests. Safe for concurrent use.
type Server struct {
	dict     *dictionary.Dict
	resolver *dictionary.Resolver
	asr      asr.Provider
	aligner  aligner.Provider
	coach    *coach.Coach
	engine   *scoring.Engine
	prosody  *prosody.Extractor
	sessions session.Store
	metrics  *observe.Metrics
	health   *health.Handler
}

// New validates deps and returns a Server.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Dict == nil:
		return nil, errors.New("server: dictionary is required")
	case deps.ASR == nil:
		return nil, errors.New("server: asr provider is required")
	case deps.Engine == nil:
		return nil, errors.New("server: scoring engine is required")
	case deps.Prosody == nil:
		return nil, errors.New("server: prosody extractor is required")
	case deps.Sessions == nil:
		return nil, errors.New("server: session store is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	if deps.Health == nil {
		deps.Health = health.New()
	}
	return &Server{
		dict:     deps.Dict,
		resolver: dictionary.NewResolver(deps.Dict),
		asr:      deps.ASR,
		aligner:  deps.Aligner,
		coach:    deps.Coach,
		engine:   deps.Engine,
		prosody:  deps.Prosody,
		sessions: deps.Sessions,
		metrics:  deps.Metrics,
		health:   deps.Health,
	}, nil
}

// Router builds the chi router with observability middleware applied to the
// API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	r.Post("/score", s.handleScore)
	r.Get("/feedback/{session_id}", s.handleFeedback)

	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
