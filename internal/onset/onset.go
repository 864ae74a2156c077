// Package onset detects note and percussion onsets in audio clips.
// The native detector works on spectral flux; a remote detector can
// delegate to an external analysis service instead.
package onset

import (
	"context"

	"github.com/flashcut/flashcut-api/internal/audio"
)

// Onset is a detected event with its position in the track and a
// confidence in [0, 1].
type Onset struct {
	Time       float64 `json:"time"`
	Confidence float64 `json:"confidence"`
}

// Options tunes detection. Zero values fall back to defaults; see
// DefaultOptions for the meaning of each field.
type Options struct {
	// Threshold drops onsets whose confidence is below it.
	Threshold float64

	// WindowSize is the analysis window in samples.
	WindowSize int
	// HopSize is the stride between analysis windows in samples.
	HopSize int

	// Peak picking: a frame is an onset candidate when it is the
	// maximum of [i-PreMax, i+PostMax] and exceeds the mean of
	// [i-PreAvg, i+PostAvg] by Delta, with at least Wait frames since
	// the previous pick.
	PreMax  int
	PostMax int
	PreAvg  int
	PostAvg int
	Delta   float64
	Wait    int
}

// DefaultOptions returns the tuning used by the analysis endpoint.
func DefaultOptions() Options {
	return Options{
		Threshold:  0.30,
		WindowSize: 2048,
		HopSize:    512,
		PreMax:     3,
		PostMax:    3,
		PreAvg:     3,
		PostAvg:    3,
		Delta:      0,
		Wait:       1,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.WindowSize <= 0 {
		o.WindowSize = def.WindowSize
	}
	if o.HopSize <= 0 {
		o.HopSize = def.HopSize
	}
	if o.PreMax <= 0 {
		o.PreMax = def.PreMax
	}
	if o.PostMax <= 0 {
		o.PostMax = def.PostMax
	}
	if o.PreAvg <= 0 {
		o.PreAvg = def.PreAvg
	}
	if o.PostAvg <= 0 {
		o.PostAvg = def.PostAvg
	}
	if o.Wait <= 0 {
		o.Wait = def.Wait
	}
	return o
}

// Detector finds onsets in a clip. Returned onsets are ascending in
// time and already filtered by the confidence threshold.
type Detector interface {
	Detect(ctx context.Context, clip *audio.Clip, opts Options) ([]Onset, error)
}
