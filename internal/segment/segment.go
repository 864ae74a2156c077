// Package segment builds cut timelines from onset timestamps.
// Given the onsets detected in an audio track and the track's total
// duration, it derives an ordered list of half-open time ranges that
// partition [0, duration) with no gaps and no overlaps.
package segment

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidInput is returned when the onsets, duration, or options
// are malformed or out of range.
var ErrInvalidInput = errors.New("segment: invalid input")

// Segment is a half-open time range [Start, End) in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns the segment duration in seconds.
func (s Segment) Length() float64 {
	return s.End - s.Start
}

// Options configures timeline construction.
type Options struct {
	// MinGap merges boundaries closer than this many seconds.
	// The track boundaries at 0 and at the total duration participate,
	// so an onset within MinGap of either is dropped. Zero disables
	// merging beyond exact-duplicate removal.
	MinGap float64

	// MaxGap subdivides any span longer than this many seconds by
	// inserting synthetic boundaries every MaxGap. Zero disables
	// subdivision.
	MaxGap float64

	// FPS quantizes every boundary (and the total duration) to the
	// frame grid round(t*FPS)/FPS. When set, the effective minimum
	// gap is at least one frame. Zero disables quantization.
	FPS float64
}

// Boundary values are rounded to milliseconds on output.
const timePrecision = 1000

// Build derives the cut timeline for a track.
//
// The returned segments are ascending, contiguous, and cover
// [0, duration) exactly (the end is quantized to the frame grid when
// opts.FPS is set). Zero onsets yield a single segment spanning the
// whole duration, subject to MaxGap subdivision.
func Build(onsets []float64, duration float64, opts Options) ([]Segment, error) {
	if err := validate(onsets, duration, opts); err != nil {
		return nil, err
	}

	end := duration
	if opts.FPS > 0 {
		if q := math.Round(duration*opts.FPS) / opts.FPS; q > 0 {
			end = q
		}
	}

	interior := make([]float64, 0, len(onsets))
	for _, t := range onsets {
		if opts.FPS > 0 {
			t = math.Round(t*opts.FPS) / opts.FPS
		}
		if t > 0 && t < end {
			interior = append(interior, t)
		}
	}
	sort.Float64s(interior)

	minGap := opts.MinGap
	if opts.FPS > 0 && 1/opts.FPS > minGap {
		minGap = 1 / opts.FPS
	}

	bounds := mergeBounds(interior, end, minGap)
	bounds = appendTail(bounds, end)
	bounds = subdivide(bounds, opts.MaxGap)

	return toSegments(bounds, end), nil
}

func validate(onsets []float64, duration float64, opts Options) error {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidInput, duration)
	}
	for _, t := range onsets {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: onset is not a finite number", ErrInvalidInput)
		}
		if t < 0 {
			return fmt.Errorf("%w: onset %v is negative", ErrInvalidInput, t)
		}
		if t > duration {
			return fmt.Errorf("%w: onset %v exceeds duration %v", ErrInvalidInput, t, duration)
		}
	}
	if opts.MinGap < 0 {
		return fmt.Errorf("%w: min gap must not be negative", ErrInvalidInput)
	}
	if opts.MaxGap < 0 {
		return fmt.Errorf("%w: max gap must not be negative", ErrInvalidInput)
	}
	if opts.FPS < 0 {
		return fmt.Errorf("%w: fps must not be negative", ErrInvalidInput)
	}
	if opts.MaxGap > 0 && opts.MinGap > opts.MaxGap {
		return fmt.Errorf("%w: min gap %v exceeds max gap %v", ErrInvalidInput, opts.MinGap, opts.MaxGap)
	}
	return nil
}

// mergeBounds keeps sorted interior boundaries that are at least minGap
// away from the previously kept boundary, starting from 0. A kept
// boundary too close to the end is dropped so the final segment never
// degenerates.
func mergeBounds(interior []float64, end, minGap float64) []float64 {
	bounds := []float64{0}
	last := 0.0
	for _, t := range interior {
		if t <= last || t-last < minGap {
			continue
		}
		bounds = append(bounds, t)
		last = t
	}
	if len(bounds) > 1 && end-last < minGap {
		bounds = bounds[:len(bounds)-1]
	}
	return bounds
}

// subdivide inserts synthetic boundaries so no span between consecutive
// boundaries (including the implicit end) exceeds maxGap. The walk is
// left to right, so a remainder shorter than maxGap may trail each span.
func subdivide(bounds []float64, maxGap float64) []float64 {
	if maxGap <= 0 {
		return bounds
	}
	out := make([]float64, 0, len(bounds))
	out = append(out, bounds[0])
	prev := bounds[0]
	for _, b := range bounds[1:] {
		for b-prev > maxGap {
			prev += maxGap
			out = append(out, prev)
		}
		out = append(out, b)
		prev = b
	}
	return out
}

// toSegments rounds the closed boundary list to millisecond precision
// and drops degenerate spans introduced by rounding.
func toSegments(bounds []float64, end float64) []Segment {
	rounded := make([]float64, 0, len(bounds))
	for _, b := range bounds {
		r := math.Round(b*timePrecision) / timePrecision
		if len(rounded) > 0 && r <= rounded[len(rounded)-1] {
			continue
		}
		rounded = append(rounded, r)
	}
	if len(rounded) < 2 {
		return []Segment{{Start: 0, End: end}}
	}

	segs := make([]Segment, 0, len(rounded)-1)
	for i := 0; i+1 < len(rounded); i++ {
		segs = append(segs, Segment{Start: rounded[i], End: rounded[i+1]})
	}
	return segs
}

func appendTail(bounds []float64, end float64) []float64 {
	if len(bounds) == 0 || bounds[len(bounds)-1] < end {
		bounds = append(bounds, end)
	}
	return bounds
}

// Quantize snaps every time to the frame grid round(t*fps)/fps.
// A non-positive fps returns a copy unchanged.
func Quantize(times []float64, fps float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		if fps > 0 {
			out[i] = math.Round(t*fps) / fps
		} else {
			out[i] = t
		}
	}
	return out
}

// PruneMinGap keeps sorted times that are at least gap seconds after
// the previously kept time.
func PruneMinGap(times []float64, gap float64) []float64 {
	out := make([]float64, 0, len(times))
	last := math.Inf(-1)
	for _, t := range times {
		if t-last >= gap {
			out = append(out, t)
			last = t
		}
	}
	return out
}
