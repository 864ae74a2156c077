package segment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNoOnsets(t *testing.T) {
	segs, err := Build(nil, 10, Options{})
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Start: 0, End: 10}}, segs)
}

func TestBuildSimpleOnsets(t *testing.T) {
	segs, err := Build([]float64{2.0, 5.0}, 10, Options{MinGap: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 0, End: 2},
		{Start: 2, End: 5},
		{Start: 5, End: 10},
	}, segs)
}

func TestBuildMergesCloseOnsets(t *testing.T) {
	segs, err := Build([]float64{2.0, 2.1}, 10, Options{MinGap: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 0, End: 2},
		{Start: 2, End: 10},
	}, segs)
}

func TestBuildMergesAgainstTrackBounds(t *testing.T) {
	// 0.2 is within MinGap of the track start, 9.9 of the track end.
	segs, err := Build([]float64{0.2, 4.0, 9.9}, 10, Options{MinGap: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 0, End: 4},
		{Start: 4, End: 10},
	}, segs)
}

func TestBuildUnsortedOnsets(t *testing.T) {
	segs, err := Build([]float64{7.0, 3.0, 5.0}, 10, Options{})
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 0, End: 3},
		{Start: 3, End: 5},
		{Start: 5, End: 7},
		{Start: 7, End: 10},
	}, segs)
}

func TestBuildDuplicateOnsets(t *testing.T) {
	segs, err := Build([]float64{5.0, 5.0, 5.0}, 10, Options{})
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 0, End: 5},
		{Start: 5, End: 10},
	}, segs)
}

func TestBuildOnsetAtBounds(t *testing.T) {
	// Onsets exactly on 0 and duration never create boundaries.
	segs, err := Build([]float64{0, 10}, 10, Options{})
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Start: 0, End: 10}}, segs)
}

func TestBuildMaxGapSubdividesEverySpan(t *testing.T) {
	segs, err := Build([]float64{7.0}, 10, Options{MaxGap: 3})
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 0, End: 3},
		{Start: 3, End: 6},
		{Start: 6, End: 7},
		{Start: 7, End: 10},
	}, segs)
}

func TestBuildMaxGapExactSpanNotSplit(t *testing.T) {
	segs, err := Build([]float64{5.0}, 10, Options{MaxGap: 5})
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 0, End: 5},
		{Start: 5, End: 10},
	}, segs)
}

func TestBuildQuantizesToFrameGrid(t *testing.T) {
	segs, err := Build([]float64{2.004}, 10.004, Options{FPS: 30})
	require.NoError(t, err)
	require.Len(t, segs, 2)
	// round(2.004*30)/30 = 60/30 = 2.0, round(10.004*30)/30 = 300/30 = 10.0
	assert.InDelta(t, 2.0, segs[0].End, 1e-9)
	assert.InDelta(t, 10.0, segs[1].End, 1e-9)
}

func TestBuildFrameGridEnforcesOneFrameGap(t *testing.T) {
	// At 30 fps two onsets one frame apart survive, closer ones merge.
	segs, err := Build([]float64{2.0, 2.01}, 10, Options{FPS: 30})
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 0, End: 2},
		{Start: 2, End: 10},
	}, segs)
}

func TestBuildInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		onsets   []float64
		duration float64
		opts     Options
	}{
		{name: "zero duration", duration: 0},
		{name: "negative duration", duration: -1},
		{name: "nan duration", duration: math.NaN()},
		{name: "negative onset", onsets: []float64{-0.5}, duration: 10},
		{name: "onset beyond duration", onsets: []float64{11}, duration: 10},
		{name: "nan onset", onsets: []float64{math.NaN()}, duration: 10},
		{name: "negative min gap", duration: 10, opts: Options{MinGap: -1}},
		{name: "negative max gap", duration: 10, opts: Options{MaxGap: -1}},
		{name: "negative fps", duration: 10, opts: Options{FPS: -30}},
		{name: "min gap above max gap", duration: 10, opts: Options{MinGap: 2, MaxGap: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.onsets, tt.duration, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestBuildPartitionProperties(t *testing.T) {
	tests := []struct {
		name     string
		onsets   []float64
		duration float64
		opts     Options
	}{
		{name: "plain", onsets: []float64{1.2, 3.4, 5.6, 7.8}, duration: 9.5},
		{name: "min gap", onsets: []float64{1.0, 1.1, 1.2, 4.0, 4.2, 8.0}, duration: 10, opts: Options{MinGap: 0.5}},
		{name: "max gap", onsets: []float64{2.5}, duration: 30, opts: Options{MaxGap: 4}},
		{name: "quantized", onsets: []float64{0.71, 1.133, 2.9017}, duration: 12.345, opts: Options{FPS: 30}},
		{name: "everything", onsets: []float64{0.3, 0.31, 5.5, 5.51, 17.2}, duration: 25.1, opts: Options{MinGap: 0.4, MaxGap: 6, FPS: 24}},
		{name: "dense", onsets: []float64{1, 1.01, 1.02, 1.03, 2, 2.01, 3}, duration: 4, opts: Options{MinGap: 0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := Build(tt.onsets, tt.duration, tt.opts)
			require.NoError(t, err)
			require.NotEmpty(t, segs)

			assert.InDelta(t, 0, segs[0].Start, 1e-9, "first segment starts at 0")
			for i, sg := range segs {
				assert.Greater(t, sg.End, sg.Start, "segment %d has positive length", i)
				if i > 0 {
					assert.InDelta(t, segs[i-1].End, sg.Start, 1e-9, "segment %d is contiguous", i)
				}
				if tt.opts.MaxGap > 0 {
					assert.LessOrEqual(t, sg.Length(), tt.opts.MaxGap+0.002, "segment %d respects max gap", i)
				}
				if tt.opts.MinGap > 0 && tt.opts.MaxGap == 0 && i < len(segs)-1 {
					assert.GreaterOrEqual(t, sg.Length(), tt.opts.MinGap-0.002, "segment %d respects min gap", i)
				}
			}

			end := tt.duration
			if tt.opts.FPS > 0 {
				end = math.Round(tt.duration*tt.opts.FPS) / tt.opts.FPS
			}
			end = math.Round(end*1000) / 1000
			assert.InDelta(t, end, segs[len(segs)-1].End, 1e-9, "last segment ends at the track end")

			if tt.opts.MaxGap == 0 {
				assert.LessOrEqual(t, len(segs), len(tt.onsets)+1)
			}
		})
	}
}

func TestQuantize(t *testing.T) {
	got := Quantize([]float64{0.016, 0.017, 1.0}, 30)
	assert.InDelta(t, 0.0, got[0], 1e-9)
	assert.InDelta(t, 1.0/30, got[1], 1e-9)
	assert.InDelta(t, 1.0, got[2], 1e-9)

	same := Quantize([]float64{0.016, 0.017}, 0)
	assert.Equal(t, []float64{0.016, 0.017}, same)
}

func TestPruneMinGap(t *testing.T) {
	got := PruneMinGap([]float64{1.0, 1.05, 1.2, 2.0, 2.05, 3.0}, 0.12)
	assert.Equal(t, []float64{1.0, 1.2, 2.0, 3.0}, got)

	assert.Empty(t, PruneMinGap(nil, 0.12))
}
