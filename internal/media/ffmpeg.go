package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	waveformSize  = "1800x400"
	waveformColor = "#f0b429"
)

// FFmpegRenderer implements Renderer using the ffmpeg CLI.
type FFmpegRenderer struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegRenderer creates a renderer around the given binaries.
// Empty paths are resolved via LocateFFmpeg and LocateFFprobe.
func NewFFmpegRenderer(ffmpegPath, ffprobePath string) *FFmpegRenderer {
	if ffmpegPath == "" {
		ffmpegPath = LocateFFmpeg()
	}
	if ffprobePath == "" {
		ffprobePath = LocateFFprobe()
	}
	return &FFmpegRenderer{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Verify interface implementation at compile time.
var _ Renderer = (*FFmpegRenderer)(nil)

// Check reports whether the rendering tools are executable.
func (r *FFmpegRenderer) Check(ctx context.Context) Capability {
	result := Capability{
		FFmpegPath:  r.ffmpegPath,
		FFprobePath: r.ffprobePath,
	}

	version, err := r.binaryVersion(ctx, r.ffmpegPath)
	if err != nil {
		result.Reason = fmt.Sprintf("ffmpeg not executable: %v", err)
		return result
	}
	result.FFmpegVersion = version
	result.Available = true

	if version, err := r.binaryVersion(ctx, r.ffprobePath); err == nil {
		result.FFprobeVersion = version
	}
	return result
}

// binaryVersion runs "<bin> -version" and returns the first output line.
func (r *FFmpegRenderer) binaryVersion(ctx context.Context, bin string) (string, error) {
	// #nosec G204 - binary path is set by the application, not user input
	cmd := exec.CommandContext(ctx, bin, "-version")

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", err
	}

	line, _, _ := strings.Cut(stdout.String(), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("no version output from %s", bin)
	}
	return line, nil
}

// Probe returns stream dimensions and duration for a media file.
func (r *FFmpegRenderer) Probe(ctx context.Context, path string) (MediaInfo, error) {
	fallback := MediaInfo{Width: 1280, Height: 720}

	// #nosec G204 - binary path is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,duration",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fallback, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return fallback, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseProbeJSON(stdout.Bytes())
}

// probe JSON wire structs; ffprobe encodes durations as strings.
type probeOutput struct {
	Streams []struct {
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		Duration string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeJSON(data []byte) (MediaInfo, error) {
	info := MediaInfo{Width: 1280, Height: 720}

	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return info, fmt.Errorf("parse ffprobe output: %w", err)
	}

	duration := out.Format.Duration
	if len(out.Streams) > 0 {
		st := out.Streams[0]
		if st.Width > 0 && st.Height > 0 {
			info.Width = st.Width
			info.Height = st.Height
		}
		if st.Duration != "" {
			duration = st.Duration
		}
	}
	if duration != "" {
		if d, err := strconv.ParseFloat(strings.TrimSpace(duration), 64); err == nil {
			info.Duration = d
		}
	}
	return info, nil
}

// Render builds the cut video: one encoded clip per segment, a concat
// pass, and a final mux with the audio track.
func (r *FFmpegRenderer) Render(ctx context.Context, spec RenderSpec) error {
	if len(spec.Segments) == 0 {
		return ErrNoSegments
	}
	if len(spec.Videos) == 0 && len(spec.Images) == 0 {
		return ErrNoSources
	}

	fps := int(spec.FPS)
	if fps <= 0 {
		fps = 30
	}
	w, h := AspectSize(spec.AspectRatio)
	filter := fmt.Sprintf(
		"fps=%d,scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black",
		fps, w, h, w, h,
	)

	workDir, err := os.MkdirTemp(spec.WorkDir, "render_")
	if err != nil {
		return fmt.Errorf("create render dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	minLen := 1 / float64(fps)
	names := make([]string, 0, len(spec.Segments))
	for i, sg := range spec.Segments {
		length := sg.Length()
		if length < minLen {
			length = minLen
		}

		name := fmt.Sprintf("seg_%04d.mp4", i)
		clipPath := filepath.Join(workDir, name)

		var args []string
		if len(spec.Videos) > 0 {
			args = r.videoClipArgs(ctx, spec, i, length, filter, clipPath)
		} else {
			args = imageClipArgs(spec.Images[i%len(spec.Images)], length, filter, clipPath)
		}
		if err := r.runFFmpeg(ctx, args); err != nil {
			return fmt.Errorf("render segment %d: %w", i, err)
		}
		names = append(names, name)
	}

	if err := writeConcatList(filepath.Join(workDir, "list.txt"), names); err != nil {
		return err
	}

	// Concat runs inside workDir so the list can use bare clip names.
	silentPath := filepath.Join(workDir, "video.mp4")
	concatArgs := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", "list.txt",
		"-fflags", "+genpts",
		"-r", strconv.Itoa(fps),
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "20",
		"-movflags", "+faststart",
		"video.mp4",
	}
	if err := r.runFFmpegInDir(ctx, workDir, concatArgs); err != nil {
		return fmt.Errorf("concat segments: %w", err)
	}

	muxArgs := []string{
		"-y",
		"-i", silentPath,
		"-i", spec.AudioPath,
		"-c:v", "copy", // Video is already encoded
		"-c:a", "aac",
		"-shortest",
		spec.OutputPath,
	}
	if err := r.runFFmpeg(ctx, muxArgs); err != nil {
		return fmt.Errorf("mux audio: %w", err)
	}
	return nil
}

// videoClipArgs trims the source when it is long enough, honoring the
// clip mode; shorter sources loop to fill the segment. Probe failures
// fall back to loop mode.
func (r *FFmpegRenderer) videoClipArgs(ctx context.Context, spec RenderSpec, i int, length float64, filter, clipPath string) []string {
	src := spec.Videos[i%len(spec.Videos)]
	meta, err := r.Probe(ctx, src)

	head := []string{"-y"}
	if err == nil && meta.Duration > 0 && length <= meta.Duration {
		start := 0.0
		if spec.ClipMode == ClipModeTail {
			start = meta.Duration - length
			if start < 0 {
				start = 0
			}
		}
		head = append(head,
			"-ss", formatSeconds(start),
			"-t", formatSeconds(length),
			"-i", src,
		)
	} else {
		head = append(head,
			"-stream_loop", "-1",
			"-t", formatSeconds(length),
			"-i", src,
		)
	}

	return append(head,
		"-vf", filter,
		"-an", // Segment audio comes from the analyzed track at mux time
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "20",
		clipPath,
	)
}

func imageClipArgs(src string, length float64, filter, clipPath string) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-t", formatSeconds(length),
		"-i", src,
		"-vf", filter,
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "20",
		clipPath,
	}
}

// writeConcatList writes an ffconcat list referencing the clip names.
func writeConcatList(path string, names []string) error {
	var buf bytes.Buffer
	buf.WriteString("ffconcat version 1.0\n")
	for _, name := range names {
		// Escape single quotes in name
		escaped := strings.ReplaceAll(name, "'", "'\\''")
		fmt.Fprintf(&buf, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

// Waveform writes a waveform overview image for an audio file.
func (r *FFmpegRenderer) Waveform(ctx context.Context, audioPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", audioPath,
		"-filter_complex", fmt.Sprintf("showwavespic=s=%s:colors=%s", waveformSize, waveformColor),
		"-frames:v", "1",
		outputPath,
	}
	return r.runFFmpeg(ctx, args)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an
// error containing stderr output if the command fails.
func (r *FFmpegRenderer) runFFmpeg(ctx context.Context, args []string) error {
	return r.runFFmpegInDir(ctx, "", args)
}

func (r *FFmpegRenderer) runFFmpegInDir(ctx context.Context, dir string, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
