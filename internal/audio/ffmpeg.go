package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// FFmpegDecoder decodes audio files, transcoding non-WAV sources to
// mono 16-bit PCM with ffmpeg before the native WAV decode.
type FFmpegDecoder struct {
	ffmpegPath string
}

// NewFFmpegDecoder creates a decoder using the given ffmpeg binary.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegDecoder(ffmpegPath string) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegDecoder{ffmpegPath: ffmpegPath}
}

// Verify interface implementation at compile time.
var _ Decoder = (*FFmpegDecoder)(nil)

// Decode reads path into a mono clip. WAV input decodes natively; any
// other container or codec goes through an ffmpeg transcode to a
// temporary WAV first.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*Clip, error) {
	clip, wavErr := DecodeWAVFile(path)
	if wavErr == nil {
		return clip, nil
	}
	if errors.Is(wavErr, ErrEmptyAudio) {
		// A valid WAV with no samples will not improve by transcoding.
		return nil, wavErr
	}

	tmp, err := os.CreateTemp("", "decode_*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	args := []string{
		"-y",
		"-i", path,
		"-ac", "1",
		"-acodec", "pcm_s16le",
		tmpPath,
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}

	return DecodeWAVFile(tmpPath)
}
