package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/speechlab-io/orthoepy/internal/dictionary"
	"github.com/speechlab-io/orthoepy/internal/observe"
	"github.com/speechlab-io/orthoepy/internal/scoring"
	"github.com/speechlab-io/orthoepy/internal/session"
	"github.com/speechlab-io/orthoepy/internal/textgrid"
	"github.com/speechlab-io/orthoepy/pkg/audio"
	"github.com/speechlab-io/orthoepy/pkg/provider/aligner"
	"github.com/speechlab-io/orthoepy/pkg/provider/asr"
)

// scoreResponse is the POST /score response body.
type scoreResponse struct {
	SessionID   string          `json:"session_id"`
	ScoreResult *scoring.Report `json:"score_result"`
}

// feedbackResponse is the GET /feedback/{session_id} response body.
type feedbackResponse struct {
	Feedback string `json:"gpt_feedback"`
}

// handleScore runs the full pipeline: decode, transcribe, align, score,
// extract pitch, store the session.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)
	start := time.Now()
	defer func() {
		s.metrics.ScoreDuration.Record(ctx, time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.metrics.RecordScoreRequest(ctx, "invalid_input")
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.metrics.RecordScoreRequest(ctx, "invalid_input")
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		s.metrics.RecordScoreRequest(ctx, "error")
		writeError(w, http.StatusInternalServerError, "read upload: "+err.Error())
		return
	}

	clip, err := audio.DecodeWAV(bytes.NewReader(raw))
	if err != nil {
		s.metrics.RecordScoreRequest(ctx, "invalid_input")
		writeError(w, http.StatusBadRequest, "decode audio: "+err.Error())
		return
	}

	// Transcribe.
	asrStart := time.Now()
	asrCtx, asrSpan := observe.StartSpan(ctx, "pipeline.transcribe")
	samples := clip.MonoSamples(asr.SampleRate)
	hypothesis, err := s.asr.Transcribe(asrCtx, samples)
	asrSpan.End()
	s.metrics.ASRDuration.Record(ctx, time.Since(asrStart).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(ctx, "asr", "transcribe")
		s.metrics.RecordScoreRequest(ctx, "error")
		writeError(w, http.StatusInternalServerError, "transcription failed: "+err.Error())
		return
	}

	// The reference defaults to the hypothesis: without a prompt we score
	// the speaker against what the recogniser heard.
	reference := strings.TrimSpace(r.FormValue("reference"))
	if reference == "" {
		reference = strings.TrimSpace(hypothesis)
	}
	if reference == "" {
		s.metrics.RecordScoreRequest(ctx, "invalid_input")
		writeError(w, http.StatusBadRequest, "no reference text and no recognisable speech")
		return
	}

	// Align.
	var alignment *textgrid.TextGrid
	if s.aligner != nil {
		alignment, err = s.align(r, raw, utteranceID(header.Filename), reference)
		if err != nil {
			if errors.Is(err, aligner.ErrToolFailure) {
				s.metrics.RecordProviderError(ctx, "aligner", "align")
				s.metrics.RecordScoreRequest(ctx, "error")
				writeError(w, http.StatusBadGateway, "alignment failed: "+err.Error())
				return
			}
			s.metrics.RecordScoreRequest(ctx, "error")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if alignment == nil {
		s.metrics.DegradedReports.Add(ctx, 1)
	}

	// Expected phonemes, with dictionary miss accounting. Misses also get
	// phonetically close in-vocabulary words looked up, so the coach can
	// name what the dictionary does know.
	expected := s.resolver.ExpectedPhonemes(reference)
	var suggestions map[string][]string
	for word, phonemes := range expected {
		if len(phonemes) == 1 && phonemes[0] == dictionary.NotFound {
			s.metrics.DictionaryMisses.Add(ctx, 1)
			if near := s.dict.Suggest(word, maxSuggestions); len(near) > 0 {
				if suggestions == nil {
					suggestions = make(map[string][]string)
				}
				suggestions[word] = near
			}
		}
	}

	// Score.
	_, scoreSpan := observe.StartSpan(ctx, "pipeline.score")
	report, err := s.engine.Score(scoring.Input{
		Reference:  reference,
		Hypothesis: hypothesis,
		Expected:   expected,
		Alignment:  alignment,
	})
	scoreSpan.End()
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidInput) {
			s.metrics.RecordScoreRequest(ctx, "invalid_input")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.metrics.RecordScoreRequest(ctx, "error")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Pitch runs on the clip's native rate to avoid resampling artifacts.
	meanPitch := s.prosody.MeanPitch(clip.MonoSamples(clip.SampleRate), clip.SampleRate)

	id, err := s.sessions.Put(ctx, session.Bundle{
		Reference:        reference,
		Hypothesis:       hypothesis,
		Report:           report,
		MeanPitch:        meanPitch,
		ExpectedPhonemes: expected,
		OOVSuggestions:   suggestions,
	})
	if err != nil {
		s.metrics.RecordScoreRequest(ctx, "error")
		writeError(w, http.StatusInternalServerError, "store session: "+err.Error())
		return
	}
	s.metrics.StoredSessions.Add(ctx, 1)
	s.metrics.RecordScoreRequest(ctx, "ok")

	log.Info("utterance scored",
		"session_id", id,
		"accuracy", report.Rubric.Accuracy,
		"clarity", report.Rubric.Clarity,
		"completeness", report.Rubric.Completeness,
		"degraded", report.AlignmentUnavailable,
	)
	writeJSON(w, http.StatusOK, scoreResponse{SessionID: id, ScoreResult: report})
}

// align stages the upload in a request-scoped workspace, runs the aligner,
// and parses the artifact. A missing alignment is returned as (nil, nil):
// the recoverable degraded case.
func (s *Server) align(r *http.Request, raw []byte, uttID, reference string) (*textgrid.TextGrid, error) {
	ctx := r.Context()

	workDir, err := os.MkdirTemp("", "orthoepy-*")
	if err != nil {
		return nil, errors.New("create workspace: " + err.Error())
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, uttID+".wav")
	if err := os.WriteFile(audioPath, raw, 0o644); err != nil {
		return nil, errors.New("stage audio: " + err.Error())
	}

	alignStart := time.Now()
	alignCtx, alignSpan := observe.StartSpan(ctx, "pipeline.align")
	artifact, err := s.aligner.Align(alignCtx, aligner.AlignRequest{
		AudioPath:   audioPath,
		UtteranceID: uttID,
		Reference:   reference,
		WorkDir:     workDir,
	})
	alignSpan.End()
	s.metrics.AlignDuration.Record(ctx, time.Since(alignStart).Seconds())
	if err != nil {
		return nil, err
	}

	tg, err := textgrid.Load(artifact)
	if err != nil {
		if errors.Is(err, textgrid.ErrAlignmentMissing) {
			observe.Logger(ctx).Warn("alignment unavailable, producing text-only report",
				"utterance_id", uttID, "error", err)
			return nil, nil
		}
		return nil, err
	}
	return tg, nil
}

// handleFeedback generates coaching feedback for a previously scored session.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "session_id")
	bundle, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.coach == nil {
		writeError(w, http.StatusServiceUnavailable, "no feedback provider configured")
		return
	}

	start := time.Now()
	coachCtx, coachSpan := observe.StartSpan(ctx, "pipeline.feedback")
	text, err := s.coach.Feedback(coachCtx, bundle)
	coachSpan.End()
	s.metrics.FeedbackDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(ctx, "feedback", "complete")
		writeError(w, http.StatusInternalServerError, "feedback generation failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{Feedback: text})
}

// utteranceID derives a filesystem-safe corpus name from the upload
// filename; unusable names fall back to "utterance".
func utteranceID(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "utterance"
	}
	return b.String()
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
