// Package audio provides WAV decoding and PCM conversion helpers used by the
// transcription and prosody stages. Only 16-bit signed little-endian PCM is
// supported; learners upload plain WAV recordings, so compressed encodings are
// rejected at the boundary rather than transcoded.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotWAV is returned by [DecodeWAV] when the input does not carry a
// RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

// Clip holds a decoded utterance as raw 16-bit signed little-endian PCM.
// A Clip is immutable once decoded and may be shared across goroutines.
type Clip struct {
	// SampleRate is the sample rate in Hz as declared by the fmt chunk.
	SampleRate int

	// Channels is the interleaved channel count (1 = mono, 2 = stereo).
	Channels int

	// PCM is the raw sample data from the data chunk.
	PCM []byte
}

// wavFormatPCM is the only fmt-chunk audio format accepted (uncompressed PCM).
const wavFormatPCM = 1

// maxChunkBytes caps the declared size of any chunk before its buffer is
// allocated. The declared length is untrusted input; without a cap a crafted
// 44-byte upload can demand a multi-GiB allocation. 64 MiB is far above any
// learner recording the upload limit admits.
const maxChunkBytes = 64 << 20

// DecodeWAV parses a RIFF/WAVE stream and returns the contained PCM data.
// Only uncompressed 16-bit PCM is accepted; other encodings return an error.
// Unknown chunks (LIST, fact, cue) are skipped.
func DecodeWAV(r io.Reader) (*Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("audio: read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		clip      Clip
		sawFormat bool
	)

	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("audio: read chunk header: %w", err)
		}
		chunkID := string(chunkHdr[0:4])
		chunkLen := binary.LittleEndian.Uint32(chunkHdr[4:8])
		if chunkLen > maxChunkBytes {
			return nil, fmt.Errorf("audio: %q chunk too large (%d bytes)", chunkID, chunkLen)
		}

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, fmt.Errorf("audio: fmt chunk too short (%d bytes)", chunkLen)
			}
			body := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != wavFormatPCM {
				return nil, fmt.Errorf("audio: unsupported WAV format %d (only PCM is supported)", format)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits := binary.LittleEndian.Uint16(body[14:16])
			if bits != 16 {
				return nil, fmt.Errorf("audio: unsupported bit depth %d (only 16-bit is supported)", bits)
			}
			sawFormat = true

		case "data":
			data := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("audio: read data chunk: %w", err)
			}
			clip.PCM = data

		default:
			// Chunks are word-aligned; a chunk with odd length carries one
			// padding byte that is not counted in the declared size.
			skip := int64(chunkLen)
			if chunkLen%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("audio: skip %q chunk: %w", chunkID, err)
			}
		}
	}

	if !sawFormat {
		return nil, errors.New("audio: missing fmt chunk")
	}
	if clip.Channels <= 0 || clip.SampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid format (%d channels, %d Hz)", clip.Channels, clip.SampleRate)
	}
	if len(clip.PCM) == 0 {
		return nil, errors.New("audio: missing or empty data chunk")
	}
	return &clip, nil
}

// Duration returns the clip's playback duration.
func (c *Clip) Duration() time.Duration {
	bytesPerSecond := c.SampleRate * c.Channels * 2
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(bytesPerSecond)
}

// Mono returns the clip's PCM down-mixed to a single channel. Mono clips are
// returned unchanged (zero allocation).
func (c *Clip) Mono() []byte {
	if c.Channels <= 1 {
		return c.PCM
	}
	return StereoToMono(c.PCM)
}

// MonoSamples returns the clip as mono float32 samples in [-1.0, 1.0],
// resampled to targetRate when it differs from the clip's rate. targetRate <= 0
// keeps the native rate.
func (c *Clip) MonoSamples(targetRate int) []float32 {
	pcm := c.Mono()
	if targetRate > 0 && targetRate != c.SampleRate {
		pcm = ResampleMono16(pcm, c.SampleRate, targetRate)
	}
	return PCMToFloat32(pcm)
}
