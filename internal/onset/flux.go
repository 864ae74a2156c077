package onset

import (
	"context"
	"math"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"

	"github.com/flashcut/flashcut-api/internal/audio"
)

// Magnitudes are floored before the dB conversion so silence maps to a
// finite level.
const magnitudeFloor = 1e-10

// FluxDetector detects onsets from spectral flux: the median positive
// change in per-bin dB magnitude between consecutive STFT frames.
type FluxDetector struct{}

// NewFluxDetector creates the native spectral flux detector.
func NewFluxDetector() *FluxDetector {
	return &FluxDetector{}
}

// Verify interface implementation at compile time.
var _ Detector = (*FluxDetector)(nil)

// Detect returns the onsets in clip whose confidence clears
// opts.Threshold, ascending in time. Clips shorter than one analysis
// window produce no onsets.
func (d *FluxDetector) Detect(ctx context.Context, clip *audio.Clip, opts Options) ([]Onset, error) {
	opts = opts.withDefaults()
	if clip == nil || clip.SampleRate <= 0 || len(clip.Samples) < opts.WindowSize {
		return []Onset{}, nil
	}

	env, err := strengthEnvelope(ctx, clip.Samples, opts.WindowSize, opts.HopSize)
	if err != nil {
		return nil, err
	}

	scale := envelopeScale(env)
	onsets := make([]Onset, 0, 16)
	for _, frame := range pickPeaks(env, opts) {
		conf := env[frame] / scale
		if conf > 1 {
			conf = 1
		}
		if conf < opts.Threshold {
			continue
		}
		t := (float64(frame*opts.HopSize) + float64(opts.WindowSize)/2) / float64(clip.SampleRate)
		onsets = append(onsets, Onset{Time: t, Confidence: conf})
	}
	return onsets, nil
}

// strengthEnvelope computes the onset strength per STFT frame. Frame f
// covers samples [f*hop, f*hop+window); its strength is the median over
// frequency bins of the positive dB magnitude increase since frame f-1.
func strengthEnvelope(ctx context.Context, samples []float64, window, hop int) ([]float64, error) {
	nFrames := 1 + (len(samples)-window)/hop
	bins := window/2 + 1
	hann := hannWindow(window)

	env := make([]float64, nFrames)
	prev := make([]float64, bins)
	cur := make([]float64, bins)
	frame := make([]float64, window)
	diffs := make([]float64, bins)

	for f := 0; f < nFrames; f++ {
		if f%64 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		off := f * hop
		for i := 0; i < window; i++ {
			frame[i] = samples[off+i] * hann[i]
		}
		spec := fft.FFTReal(frame)
		for b := 0; b < bins; b++ {
			mag := cmplx.Abs(spec[b])
			if mag < magnitudeFloor {
				mag = magnitudeFloor
			}
			cur[b] = 20 * math.Log10(mag)
		}

		if f > 0 {
			for b := 0; b < bins; b++ {
				d := cur[b] - prev[b]
				if d < 0 {
					d = 0
				}
				diffs[b] = d
			}
			env[f] = median(diffs)
		}
		prev, cur = cur, prev
	}
	return env, nil
}

func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	tmp := make([]float64, len(xs))
	copy(tmp, xs)
	sort.Float64s(tmp)
	n := len(tmp)
	if n%2 == 1 {
		return tmp[n/2]
	}
	return (tmp[n/2-1] + tmp[n/2]) / 2
}

// envelopeScale returns the confidence normalizer: the 98th percentile
// of the envelope, falling back to its maximum and then to 1 so the
// division is always defined.
func envelopeScale(env []float64) float64 {
	if len(env) == 0 {
		return 1
	}
	tmp := make([]float64, len(env))
	copy(tmp, env)
	sort.Float64s(tmp)

	pos := 0.98 * float64(len(tmp)-1)
	lo := int(pos)
	scale := tmp[lo]
	if lo+1 < len(tmp) {
		frac := pos - float64(lo)
		scale = tmp[lo]*(1-frac) + tmp[lo+1]*frac
	}
	if scale <= 0 {
		scale = tmp[len(tmp)-1]
	}
	if scale <= 0 {
		scale = 1
	}
	return scale
}

// pickPeaks returns frames that are the local maximum of their
// neighborhood and exceed the local mean by Delta, spaced at least
// Wait frames apart. Zero-strength frames never qualify.
func pickPeaks(env []float64, opts Options) []int {
	var peaks []int
	for i := range env {
		if env[i] <= 0 {
			continue
		}
		if !isLocalMax(env, i, opts.PreMax, opts.PostMax) {
			continue
		}
		if env[i] < localMean(env, i, opts.PreAvg, opts.PostAvg)+opts.Delta {
			continue
		}
		if len(peaks) > 0 && i-peaks[len(peaks)-1] <= opts.Wait {
			continue
		}
		peaks = append(peaks, i)
	}
	return peaks
}

func isLocalMax(env []float64, i, pre, post int) bool {
	lo, hi := i-pre, i+post
	if lo < 0 {
		lo = 0
	}
	if hi > len(env)-1 {
		hi = len(env) - 1
	}
	for j := lo; j <= hi; j++ {
		if env[j] > env[i] {
			return false
		}
	}
	return true
}

func localMean(env []float64, i, pre, post int) float64 {
	lo, hi := i-pre, i+post
	if lo < 0 {
		lo = 0
	}
	if hi > len(env)-1 {
		hi = len(env) - 1
	}
	sum := 0.0
	for j := lo; j <= hi; j++ {
		sum += env[j]
	}
	return sum / float64(hi-lo+1)
}
