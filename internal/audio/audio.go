// Package audio decodes uploaded audio into mono sample buffers for
// onset analysis. WAV files are decoded natively; everything else goes
// through an ffmpeg transcode.
package audio

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned when a source decodes to zero samples and
// its duration cannot be determined.
var ErrEmptyAudio = errors.New("audio: source contains no samples")

// Clip is a decoded mono audio signal.
type Clip struct {
	// Samples are mono PCM samples normalized to [-1, 1].
	Samples []float64
	// SampleRate is in Hz.
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Slice returns the sub-clip covering [start, end) seconds. The bounds
// are clamped to the clip; the returned samples share the underlying
// array.
func (c *Clip) Slice(start, end float64) *Clip {
	lo := int(start * float64(c.SampleRate))
	hi := int(end * float64(c.SampleRate))
	if lo < 0 {
		lo = 0
	}
	if hi > len(c.Samples) {
		hi = len(c.Samples)
	}
	if lo >= hi {
		return &Clip{SampleRate: c.SampleRate}
	}
	return &Clip{Samples: c.Samples[lo:hi], SampleRate: c.SampleRate}
}

// Decoder decodes an audio file into a mono clip.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Clip, error)
}
