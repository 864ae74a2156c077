// Package server provides the HTTP front end for the flashcut API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"github.com/flashcut/flashcut-api/internal/onset"
	"github.com/flashcut/flashcut-api/internal/segment"
)

// AnalyzeForm holds the parsed /analyze form fields. Absent fields
// carry the documented defaults before validation runs.
type AnalyzeForm struct {
	// FPS is the timeline grid in frames per second.
	FPS float64 `validate:"min=10,max=120"`
	// Threshold drops onsets below this confidence.
	Threshold float64 `validate:"min=0,max=1"`
	// MaxGap caps the distance between consecutive cuts in seconds.
	MaxGap float64 `validate:"min=0.1,max=10"`
	// MinGap drops cuts that follow the previous one too closely.
	MinGap float64 `validate:"min=0,max=10"`
	// FlashStart and FlashEnd bound the rapid-cut section in seconds.
	FlashStart float64 `validate:"min=0"`
	FlashEnd   float64 `validate:"min=0"`
	// FlashGap is the minimum spacing between flash cuts in seconds.
	FlashGap float64 `validate:"min=0.01,max=1"`
	// Render requests an ffmpeg render of the cut video.
	Render bool
	// ClipMode selects which part of a source video fills a segment.
	ClipMode string `validate:"oneof=head tail"`
	// AspectRatio picks the output dimensions preset.
	AspectRatio string `validate:"oneof=16:9 1:1 9:16 4:3"`
	// OutputName is the rendered video filename.
	OutputName string
}

// AudioMeta describes the uploaded audio track.
type AudioMeta struct {
	Filename   string  `json:"filename"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
}

// ParamsEcho returns the effective parameters after defaulting and
// sanitizing, so clients can see what the analysis actually used.
type ParamsEcho struct {
	FPS         float64 `json:"fps"`
	Threshold   float64 `json:"threshold"`
	MaxGap      float64 `json:"max_gap"`
	MinGap      float64 `json:"min_gap"`
	FlashStart  float64 `json:"flash_start"`
	FlashEnd    float64 `json:"flash_end"`
	FlashGap    float64 `json:"flash_gap"`
	Render      bool    `json:"do_render"`
	ClipMode    string  `json:"clip_mode"`
	AspectRatio string  `json:"aspect_ratio"`
	OutputName  string  `json:"output_name"`
}

// ArtifactRef points a client at a downloadable job artifact.
type ArtifactRef struct {
	// Name is the artifact filename within the job directory.
	Name string `json:"name"`
	// Size is the artifact size in bytes.
	Size int64 `json:"size"`
	// URL is the download path for this artifact.
	URL string `json:"url"`
}

// RenderBlock reports the outcome of the optional video render.
type RenderBlock struct {
	// Requested is true when the client asked for a render.
	Requested bool `json:"requested"`
	// Rendered is true when the output video was produced.
	Rendered bool `json:"rendered"`
	// Message explains why a requested render did not happen.
	Message string `json:"message,omitempty"`
	// Output is the rendered video filename (if rendered).
	Output string `json:"output,omitempty"`
	// VideoURL is the S3 URL of the rendered video (if uploaded).
	VideoURL string `json:"video_url,omitempty"`
}

// AnalyzeResponse is the HTTP response for a completed analysis.
type AnalyzeResponse struct {
	// JobID identifies the job directory holding the artifacts.
	JobID string `json:"job_id"`
	// Audio is metadata about the uploaded track.
	Audio AudioMeta `json:"audio"`
	// Params echoes the effective analysis parameters.
	Params ParamsEcho `json:"params"`
	// Onsets are the detected events above the confidence threshold.
	Onsets []onset.Onset `json:"onsets"`
	// Segments is the cut timeline covering the full track.
	Segments []segment.Segment `json:"segments"`
	// Flash lists the extra cut times inside the flash window.
	Flash []float64 `json:"flash"`
	// Artifacts lists the downloadable files produced by the job.
	Artifacts []ArtifactRef `json:"artifacts"`
	// Render reports the outcome of the optional video render.
	Render RenderBlock `json:"render"`
}

// FFmpegCheckResponse is the HTTP response for renderer diagnostics.
type FFmpegCheckResponse struct {
	FFmpegAvailable  bool   `json:"ffmpeg_available"`
	FFmpegPath       string `json:"ffmpeg_path,omitempty"`
	FFmpegVersion    string `json:"ffmpeg_version,omitempty"`
	FFprobeAvailable bool   `json:"ffprobe_available"`
	FFprobePath      string `json:"ffprobe_path,omitempty"`
	FFprobeVersion   string `json:"ffprobe_version,omitempty"`
	// Reason explains why rendering is unavailable.
	Reason string `json:"reason,omitempty"`
	// CheckedAt is the RFC 3339 timestamp of this check.
	CheckedAt string `json:"checked_at"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// OK is true whenever the process can serve requests.
	OK bool `json:"ok"`
}
