package segment

import (
	"math"
	"sort"
)

// Comparisons against the one-frame minimum tolerate float error from
// grid quantization.
const frameEps = 1e-9

// InjectSplits splits segments at the given cut times, typically a
// denser onset pass over a flash window. Cuts that fall strictly inside
// a segment subdivide it; cuts on a boundary or outside every segment
// are ignored. A cut that would leave either side shorter than one
// frame is dropped, so the original partition is preserved.
//
// fps must be positive; a non-positive fps returns segs unchanged.
func InjectSplits(segs []Segment, cuts []float64, fps float64) []Segment {
	if len(segs) == 0 || len(cuts) == 0 || fps <= 0 {
		return segs
	}
	minLen := 1 / fps

	sorted := Quantize(cuts, fps)
	sort.Float64s(sorted)

	out := make([]Segment, 0, len(segs)+len(sorted))
	for _, sg := range segs {
		inner := innerCuts(sorted, sg)
		if len(inner) == 0 {
			out = append(out, sg)
			continue
		}

		kept := []float64{sg.Start}
		for _, c := range inner {
			if c-kept[len(kept)-1] < minLen-frameEps {
				continue
			}
			if sg.End-c < minLen-frameEps {
				continue
			}
			kept = append(kept, c)
		}
		kept = append(kept, sg.End)

		for i := 0; i+1 < len(kept); i++ {
			a := math.Round(kept[i]*timePrecision) / timePrecision
			b := math.Round(kept[i+1]*timePrecision) / timePrecision
			if b <= a {
				continue
			}
			out = append(out, Segment{Start: a, End: b})
		}
	}
	return out
}

func innerCuts(sorted []float64, sg Segment) []float64 {
	lo := sort.SearchFloat64s(sorted, sg.Start)
	var inner []float64
	for _, c := range sorted[lo:] {
		if c >= sg.End {
			break
		}
		if c > sg.Start {
			inner = append(inner, c)
		}
	}
	return inner
}
