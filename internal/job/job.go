// Package job orchestrates one analysis request end to end: it saves
// the uploaded sources, decodes the audio, detects onsets, builds the
// cut timeline, writes the cut artifacts and optionally renders the
// final video. Jobs exist only as directories of artifacts; nothing is
// persisted beyond the filesystem.
package job

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flashcut/flashcut-api/internal/media"
	"github.com/flashcut/flashcut-api/internal/onset"
	"github.com/flashcut/flashcut-api/internal/segment"
	"github.com/flashcut/flashcut-api/internal/storage"
)

// Artifact names written into every job directory.
const (
	// CutsJSONName is the full analysis document.
	CutsJSONName = "cuts.json"
	// CutsCSVName is the segment table (index,start,end).
	CutsCSVName = "cuts.csv"
	// WaveformName is the waveform overview image.
	WaveformName = "waveform.png"
	// DefaultOutputName is the rendered video when no name is given.
	DefaultOutputName = "final_video.mp4"
)

// uploadPrefix marks source files saved into the job directory.
// Sources share the directory with artifacts, so their names carry a
// reserved prefix that request parameters cannot produce.
const uploadPrefix = "upload_"

// ErrAnalysisFailed is returned when the audio cannot be decoded or
// the detector fails. The wrapped message is user-facing.
var ErrAnalysisFailed = errors.New("analysis failed")

// Upload is one client file, already buffered by the HTTP layer.
type Upload struct {
	// Name is the client-supplied filename.
	Name string
	// Data is the file content.
	Data io.Reader
}

// Params control analysis and rendering for one request.
// Zero values are not valid; start from DefaultParams.
type Params struct {
	// FPS is the frame grid for boundary quantization and rendering.
	FPS float64
	// Threshold discards onsets with lower confidence (0..1).
	Threshold float64
	// MaxGap subdivides spans longer than this many seconds.
	MaxGap float64
	// MinGap merges boundaries closer than this many seconds.
	MinGap float64
	// FlashStart and FlashEnd bound the dense flash-cut window.
	// The window is active only when FlashEnd > FlashStart.
	FlashStart float64
	FlashEnd   float64
	// FlashGap is the minimum spacing between flash cuts.
	FlashGap float64
	// Render requests a video render when sources are provided.
	Render bool
	// ClipMode selects the head or tail of source videos.
	ClipMode media.ClipMode
	// AspectRatio selects the output dimensions preset.
	AspectRatio string
	// OutputName is the rendered video filename (must end in .mp4).
	OutputName string
}

// DefaultParams returns the parameter defaults applied when a field is
// not supplied by the client.
func DefaultParams() Params {
	return Params{
		FPS:         30,
		Threshold:   0.30,
		MaxGap:      5.0,
		MinGap:      0,
		FlashStart:  10.0,
		FlashEnd:    25.0,
		FlashGap:    0.12,
		Render:      true,
		ClipMode:    media.ClipModeHead,
		AspectRatio: "16:9",
		OutputName:  DefaultOutputName,
	}
}

// AnalyzeInput carries one analysis request.
type AnalyzeInput struct {
	// Audio is the track to analyze (required).
	Audio Upload
	// Videos fill segments during rendering, round-robin.
	Videos []Upload
	// Images are PNG stills used when no videos are given.
	Images []Upload
	// Params are the analysis and render options.
	Params Params
}

// AudioInfo describes the analyzed track.
type AudioInfo struct {
	// Filename is the client-supplied name.
	Filename string
	// Duration is the decoded length in seconds.
	Duration float64
	// SampleRate is the decoded sample rate in Hz.
	SampleRate int
}

// RenderResult reports what happened to the optional render step.
// Render problems degrade to a message here; they never fail the
// analysis.
type RenderResult struct {
	// Requested reflects the do_render parameter.
	Requested bool
	// Rendered is true when the output video was produced.
	Rendered bool
	// Message explains why nothing was rendered.
	Message string
	// Output is the rendered artifact name.
	Output string
	// VideoURL is the S3 URL when delivery is configured.
	VideoURL string
}

// AnalyzeOutput contains the result of one analysis.
type AnalyzeOutput struct {
	// JobID identifies the artifact directory.
	JobID string
	// Audio describes the analyzed track.
	Audio AudioInfo
	// Params echoes the effective parameters.
	Params Params
	// Onsets are the detected events above the threshold.
	Onsets []onset.Onset
	// Segments is the final cut timeline.
	Segments []segment.Segment
	// Flash are the injected flash-cut times.
	Flash []float64
	// Artifacts lists the downloadable files of the job.
	Artifacts []storage.Artifact
	// Render reports the render step.
	Render RenderResult
}

// CutsDocument is the schema of the cuts.json artifact.
type CutsDocument struct {
	Audio       string            `json:"audio"`
	Duration    float64           `json:"duration"`
	FPS         float64           `json:"fps"`
	MaxGap      float64           `json:"max_gap"`
	MinGap      float64           `json:"min_gap"`
	Onsets      []onset.Onset     `json:"onsets"`
	Segments    []segment.Segment `json:"segments"`
	Flash       []float64         `json:"flash"`
	FlashWindow [2]float64        `json:"flash_window"`
	ClipMode    string            `json:"clip_mode"`
}

// NewCutsDocument assembles the cuts.json payload for one analysis.
func NewCutsDocument(audioName string, duration float64, p Params, onsets []onset.Onset, segments []segment.Segment, flash []float64) CutsDocument {
	return CutsDocument{
		Audio:       audioName,
		Duration:    duration,
		FPS:         p.FPS,
		MaxGap:      p.MaxGap,
		MinGap:      p.MinGap,
		Onsets:      onsets,
		Segments:    segments,
		Flash:       flash,
		FlashWindow: [2]float64{p.FlashStart, p.FlashEnd},
		ClipMode:    string(p.ClipMode),
	}
}

// CutsCSV renders the segment table artifact.
func CutsCSV(segments []segment.Segment) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"index", "start", "end"})
	for i, sg := range segments {
		_ = w.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(sg.Start, 'f', 3, 64),
			strconv.FormatFloat(sg.End, 'f', 3, 64),
		})
	}
	w.Flush()
	return buf.Bytes()
}

// normalizeOutputName sanitizes the requested output filename.
// Anything unusable, not ending in .mp4, or colliding with the
// reserved upload prefix falls back to DefaultOutputName.
func normalizeOutputName(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, `/`))
	if base == "" || base == "." || base == ".." || base == "/" ||
		!strings.HasSuffix(base, ".mp4") || strings.HasPrefix(base, uploadPrefix) {
		return DefaultOutputName
	}
	return base
}

// sourceName builds the on-disk name for an uploaded source file.
func sourceName(kind string, index int, original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, `/`))
	if base == "" || base == "." || base == ".." || base == "/" {
		base = "file"
	}
	return fmt.Sprintf("%s%s_%d_%s", uploadPrefix, kind, index, base)
}

// displayName reduces a client filename to its base component for
// echoing in responses and documents.
func displayName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, `/`))
	if base == "" || base == "." || base == ".." || base == "/" {
		return "upload"
	}
	return base
}

// isPNG reports whether an upload name looks like a PNG image.
// Non-PNG images are skipped, never an error.
func isPNG(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".png")
}
