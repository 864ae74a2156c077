// Package media renders cut videos and waveform images with ffmpeg.
package media

import (
	"context"
	"errors"

	"github.com/flashcut/flashcut-api/internal/segment"
)

// Static errors for media operations.
var (
	// ErrToolUnavailable is returned when ffmpeg cannot be executed.
	ErrToolUnavailable = errors.New("media: ffmpeg is not available")
	// ErrNoSegments is returned when a render is requested without segments.
	ErrNoSegments = errors.New("media: no segments to render")
	// ErrNoSources is returned when neither videos nor images are provided.
	ErrNoSources = errors.New("media: no video or image sources provided")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("media: ffprobe execution failed")
)

// Capability reports whether rendering tools can run and which
// binaries back them.
type Capability struct {
	Available      bool
	Reason         string
	FFmpegPath     string
	FFmpegVersion  string
	FFprobePath    string
	FFprobeVersion string
}

// FFprobeAvailable reports whether media probing works. Rendering
// degrades to loop mode without it.
func (c Capability) FFprobeAvailable() bool {
	return c.FFprobeVersion != ""
}

// MediaInfo describes the primary video stream of a file.
type MediaInfo struct {
	Width    int
	Height   int
	Duration float64
}

// ClipMode selects which part of a source video fills a segment.
type ClipMode string

const (
	// ClipModeHead cuts from the start of the source.
	ClipModeHead ClipMode = "head"
	// ClipModeTail cuts from the end of the source.
	ClipModeTail ClipMode = "tail"
)

var aspectSizes = map[string][2]int{
	"16:9": {1280, 720},
	"1:1":  {720, 720},
	"9:16": {720, 1280},
	"4:3":  {960, 720},
}

// AspectSize returns the output dimensions for an aspect ratio preset.
// Unknown ratios fall back to 16:9.
func AspectSize(ratio string) (w, h int) {
	if size, ok := aspectSizes[ratio]; ok {
		return size[0], size[1]
	}
	return 1280, 720
}

// RenderSpec describes one render: the cut timeline, the audio track,
// and the visual sources that fill the segments round-robin.
type RenderSpec struct {
	Segments []segment.Segment
	// AudioPath is muxed under the concatenated video.
	AudioPath string
	// Videos fill segments when present; otherwise Images are used as
	// stills. At least one of the two must be non-empty.
	Videos []string
	Images []string

	FPS         float64
	ClipMode    ClipMode
	AspectRatio string

	// OutputPath is the final mp4 location.
	OutputPath string
	// WorkDir hosts the intermediate clip directory; empty uses the
	// system temp dir.
	WorkDir string
}

// Renderer produces videos and waveform images from analysis results.
type Renderer interface {
	// Check reports whether the rendering tools are executable.
	Check(ctx context.Context) Capability

	// Probe returns stream dimensions and duration for a media file.
	// On failure it returns 1280x720 with zero duration alongside the
	// error so callers can degrade.
	Probe(ctx context.Context, path string) (MediaInfo, error)

	// Render builds the cut video described by spec.
	Render(ctx context.Context, spec RenderSpec) error

	// Waveform writes a waveform overview image for an audio file.
	Waveform(ctx context.Context, audioPath, outputPath string) error
}
