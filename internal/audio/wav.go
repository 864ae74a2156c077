package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// pcmChunkFrames is the number of frames read per decode iteration.
const pcmChunkFrames = 8192

// DecodeWAVFile decodes a PCM WAV file, mixing multi-channel audio
// down to mono.
func DecodeWAVFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", path)
	}
	if d.SampleRate == 0 || d.NumChans == 0 || d.BitDepth == 0 {
		return nil, fmt.Errorf("wav header is malformed: %s", path)
	}

	channels := int(d.NumChans)
	scale := float64(int64(1) << (d.BitDepth - 1))
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: int(d.SampleRate)},
		Data:   make([]int, pcmChunkFrames*channels),
	}

	var mono []float64
	for {
		n, err := d.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("decode wav: %w", err)
		}
		if n == 0 {
			break
		}
		frames := n / channels
		for i := 0; i < frames; i++ {
			sum := 0.0
			for c := 0; c < channels; c++ {
				sum += float64(buf.Data[i*channels+c])
			}
			mono = append(mono, sum/float64(channels)/scale)
		}
	}

	if len(mono) == 0 {
		return nil, ErrEmptyAudio
	}
	return &Clip{Samples: mono, SampleRate: int(d.SampleRate)}, nil
}

// WriteWAVFile encodes a clip as 16-bit mono PCM WAV.
func WriteWAVFile(path string, clip *Clip) error {
	if clip == nil || len(clip.Samples) == 0 {
		return ErrEmptyAudio
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	enc := wav.NewEncoder(f, clip.SampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: clip.SampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(clip.Samples)),
	}
	for i, s := range clip.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}
