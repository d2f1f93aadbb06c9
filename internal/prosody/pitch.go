// Package prosody computes a scalar pitch summary (mean fundamental
// frequency) from raw audio samples.
//
// The estimator is frame-wise normalised autocorrelation over a bounded lag
// range derived from the configured pitch search range. Pitch is an auxiliary
// signal for coaching feedback, not an input to accuracy scoring, so the
// extractor never fails: inputs with no voiced frames simply produce 0.
package prosody

import "math"

const (
	// defaultMinPitch/defaultMaxPitch bound the F0 search range in Hz,
	// covering adult speech.
	defaultMinPitch = 75.0
	defaultMaxPitch = 600.0

	// defaultVoicingThreshold is the minimum normalised autocorrelation peak
	// for a frame to count as voiced.
	defaultVoicingThreshold = 0.45

	// silenceRMS is the per-frame RMS floor (normalised samples) below which
	// a frame is skipped outright.
	silenceRMS = 0.01

	// frameDuration and hopDuration control analysis granularity in seconds.
	// 40 ms holds at least three periods of the lowest searchable pitch.
	frameDuration = 0.040
	hopDuration   = 0.010
)

// Option is a functional option for configuring an [Extractor].
type Option func(*Extractor)

// WithPitchRange sets the F0 search range in Hz. Default: 75–600 Hz.
func WithPitchRange(minHz, maxHz float64) Option {
	return func(e *Extractor) {
		e.minPitch = minHz
		e.maxPitch = maxHz
	}
}

// WithVoicingThreshold sets the minimum normalised autocorrelation peak for a
// frame to be treated as voiced. Default: 0.45.
func WithVoicingThreshold(threshold float64) Option {
	return func(e *Extractor) {
		e.voicingThreshold = threshold
	}
}

// Extractor estimates mean pitch over an utterance. Read-only after
// construction; safe for concurrent use.
type Extractor struct {
	minPitch         float64
	maxPitch         float64
	voicingThreshold float64
}

// New returns an [Extractor] configured with the supplied options.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		minPitch:         defaultMinPitch,
		maxPitch:         defaultMaxPitch,
		voicingThreshold: defaultVoicingThreshold,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// MeanPitch returns the mean fundamental frequency in Hz over all voiced
// frames of the mono signal, rounded to two decimal places. Returns 0 when
// the input is empty, too short for one analysis frame, or contains no voiced
// frames.
func (e *Extractor) MeanPitch(samples []float32, sampleRate int) float64 {
	if sampleRate <= 0 || e.minPitch <= 0 || e.maxPitch <= e.minPitch {
		return 0
	}

	frameLen := int(frameDuration * float64(sampleRate))
	hop := int(hopDuration * float64(sampleRate))
	if frameLen <= 0 || hop <= 0 || len(samples) < frameLen {
		return 0
	}

	minLag := int(float64(sampleRate) / e.maxPitch)
	maxLag := int(float64(sampleRate) / e.minPitch)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= frameLen {
		maxLag = frameLen - 1
	}
	if minLag >= maxLag {
		return 0
	}

	var sum float64
	var voiced int

	for start := 0; start+frameLen <= len(samples); start += hop {
		frame := samples[start : start+frameLen]
		if f0, ok := e.framePitch(frame, sampleRate, minLag, maxLag); ok {
			sum += f0
			voiced++
		}
	}

	if voiced == 0 {
		return 0
	}
	return math.Round(sum/float64(voiced)*100) / 100
}

// framePitch estimates F0 for a single frame, returning ok=false for silent
// or unvoiced frames.
func (e *Extractor) framePitch(frame []float32, sampleRate, minLag, maxLag int) (float64, bool) {
	n := len(frame)

	// Remove DC offset and gate on energy.
	var mean float64
	for _, s := range frame {
		mean += float64(s)
	}
	mean /= float64(n)

	centred := make([]float64, n)
	var energy float64
	for i, s := range frame {
		v := float64(s) - mean
		centred[i] = v
		energy += v * v
	}
	if math.Sqrt(energy/float64(n)) < silenceRMS {
		return 0, false
	}

	// Normalised autocorrelation over the lag range; keep the strongest peak.
	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr, lagEnergy float64
		for i := 0; i+lag < n; i++ {
			corr += centred[i] * centred[i+lag]
			lagEnergy += centred[i+lag] * centred[i+lag]
		}
		denom := math.Sqrt(energy * lagEnergy)
		if denom == 0 {
			continue
		}
		if r := corr / denom; r > bestCorr {
			bestCorr = r
			bestLag = lag
		}
	}

	if bestLag == 0 || bestCorr < e.voicingThreshold {
		return 0, false
	}
	return float64(sampleRate) / float64(bestLag), true
}
