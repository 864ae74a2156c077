package audio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineClip(sampleRate int, seconds, freq float64) *Clip {
	n := int(float64(sampleRate) * seconds)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return &Clip{Samples: samples, SampleRate: sampleRate}
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	orig := sineClip(8000, 0.5, 440)
	require.NoError(t, WriteWAVFile(path, orig))

	got, err := DecodeWAVFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, got.SampleRate)
	require.Len(t, got.Samples, len(orig.Samples))
	for i := 0; i < len(orig.Samples); i += 512 {
		assert.InDelta(t, orig.Samples[i], got.Samples[i], 1.0/16384, "sample %d", i)
	}
	assert.InDelta(t, 0.5, got.Duration(), 1e-6)
}

func TestDecodeWAVFileMixesDownStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")

	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	// Left channel at full scale, right channel silent.
	const frames = 800
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		data[i*2] = 16384
		data[i*2+1] = 0
	}
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 8000},
		SourceBitDepth: 16,
		Data:           data,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	got, err := DecodeWAVFile(path)
	require.NoError(t, err)
	require.Len(t, got.Samples, frames)
	assert.InDelta(t, 0.25, got.Samples[10], 1e-3, "stereo frames average to mono")
}

func TestDecodeWAVFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0600))

	_, err := DecodeWAVFile(path)
	assert.Error(t, err)
}

func TestDecodeWAVFileMissing(t *testing.T) {
	_, err := DecodeWAVFile(filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
}

func TestWriteWAVFileEmptyClip(t *testing.T) {
	err := WriteWAVFile(filepath.Join(t.TempDir(), "empty.wav"), &Clip{SampleRate: 8000})
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestClipSlice(t *testing.T) {
	clip := &Clip{Samples: make([]float64, 8000), SampleRate: 8000}

	sub := clip.Slice(0.25, 0.5)
	assert.Len(t, sub.Samples, 2000)
	assert.Equal(t, 8000, sub.SampleRate)

	assert.Len(t, clip.Slice(-1, 0.5).Samples, 4000)
	assert.Len(t, clip.Slice(0.5, 99).Samples, 4000)
	assert.Empty(t, clip.Slice(0.8, 0.2).Samples)
	assert.Empty(t, clip.Slice(2, 3).Samples)
}

func TestClipDuration(t *testing.T) {
	assert.InDelta(t, 1.0, (&Clip{Samples: make([]float64, 8000), SampleRate: 8000}).Duration(), 1e-9)
	assert.Zero(t, (&Clip{Samples: make([]float64, 10)}).Duration())
}

func TestFFmpegDecoderNativeWAVPath(t *testing.T) {
	// WAV input never shells out, so this passes without ffmpeg.
	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, WriteWAVFile(path, sineClip(8000, 0.25, 220)))

	d := NewFFmpegDecoder("/nonexistent/ffmpeg")
	got, err := d.Decode(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 8000, got.SampleRate)
	assert.InDelta(t, 0.25, got.Duration(), 1e-6)
}

func TestFFmpegDecoderUnreadableSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0600))

	d := NewFFmpegDecoder("/nonexistent/ffmpeg")
	_, err := d.Decode(context.Background(), path)
	assert.Error(t, err)
}
