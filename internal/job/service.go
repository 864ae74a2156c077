package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/flashcut/flashcut-api/internal/audio"
	"github.com/flashcut/flashcut-api/internal/job/id"
	"github.com/flashcut/flashcut-api/internal/media"
	"github.com/flashcut/flashcut-api/internal/onset"
	"github.com/flashcut/flashcut-api/internal/segment"
	"github.com/flashcut/flashcut-api/internal/storage"
)

// AnalyzeService orchestrates the analysis workflow.
// It coordinates audio decoding, onset detection, timeline building,
// artifact writing and the optional ffmpeg render.
type AnalyzeService struct {
	store    storage.Store
	decoder  audio.Decoder
	detector onset.Detector
	renderer media.Renderer
	logger   *slog.Logger
	// sem limits concurrent analyses. Uploads are large and renders
	// are CPU-bound, so requests run one at a time by default.
	sem chan struct{}
}

// NewAnalyzeService creates a new AnalyzeService.
// maxConcurrent bounds the number of analyses running at once; values
// below 1 are treated as 1.
func NewAnalyzeService(
	store storage.Store,
	decoder audio.Decoder,
	detector onset.Detector,
	renderer media.Renderer,
	logger *slog.Logger,
	maxConcurrent int,
) *AnalyzeService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &AnalyzeService{
		store:    store,
		decoder:  decoder,
		detector: detector,
		renderer: renderer,
		logger:   logger,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// Analyze runs the complete workflow for one request.
//
// The workflow:
//  1. Save the uploaded sources into a fresh job directory
//  2. Decode the audio to a mono waveform
//  3. Detect onsets and build the segment timeline
//  4. Detect and inject flash cuts when the window is active
//  5. Write cuts.json, cuts.csv and the waveform image
//  6. Optionally render the final video and upload it to S3
//
// Uploaded sources are removed on every exit path. On failure the
// whole job directory is removed; on success the derived artifacts
// stay on disk for download.
func (s *AnalyzeService) Analyze(ctx context.Context, input AnalyzeInput) (*AnalyzeOutput, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	}

	p := input.Params
	p.OutputName = normalizeOutputName(p.OutputName)
	if media.ClipMode(strings.ToLower(string(p.ClipMode))) == media.ClipModeTail {
		p.ClipMode = media.ClipModeTail
	} else {
		p.ClipMode = media.ClipModeHead
	}

	jobID := id.Generate()
	logger := s.logger.With(slog.String("job_id", jobID))

	logger.Info("analysis started",
		slog.String("audio", displayName(input.Audio.Name)),
		slog.Float64("fps", p.FPS),
		slog.Float64("threshold", p.Threshold),
		slog.Bool("render", p.Render),
	)

	jobDir, err := s.store.CreateJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	success := false
	var sources []string
	defer func() {
		cleanup := context.WithoutCancel(ctx)
		s.removeSources(cleanup, jobID, sources, logger)
		if !success {
			if err := s.store.RemoveJob(cleanup, jobID); err != nil {
				logger.Warn("failed to remove job directory", slog.String("error", err.Error()))
			}
		}
	}()

	audioName := sourceName("audio", 1, input.Audio.Name)
	audioPath, err := s.store.SaveFile(ctx, jobID, audioName, input.Audio.Data)
	if err != nil {
		return nil, err
	}
	sources = append(sources, audioName)

	var videoPaths, imagePaths []string
	if p.Render {
		for i, up := range input.Videos {
			name := sourceName("video", i+1, up.Name)
			path, err := s.store.SaveFile(ctx, jobID, name, up.Data)
			if err != nil {
				return nil, err
			}
			sources = append(sources, name)
			videoPaths = append(videoPaths, path)
		}
		for i, up := range input.Images {
			if !isPNG(up.Name) {
				continue
			}
			name := sourceName("image", i+1, up.Name)
			path, err := s.store.SaveFile(ctx, jobID, name, up.Data)
			if err != nil {
				return nil, err
			}
			sources = append(sources, name)
			imagePaths = append(imagePaths, path)
		}
	}

	clip, err := s.decoder.Decode(ctx, audioPath)
	if err != nil {
		if errors.Is(err, audio.ErrEmptyAudio) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Error("audio decode failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: could not read the audio file; upload a WAV file or install ffmpeg", ErrAnalysisFailed)
	}

	opts := onset.DefaultOptions()
	opts.Threshold = p.Threshold

	onsets, err := s.detector.Detect(ctx, clip, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Error("onset detection failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: onset detection failed", ErrAnalysisFailed)
	}
	logger.Info("onsets detected", slog.Int("count", len(onsets)))

	times := make([]float64, len(onsets))
	for i, o := range onsets {
		times[i] = o.Time
	}

	segments, err := segment.Build(times, clip.Duration(), segment.Options{
		MinGap: p.MinGap,
		MaxGap: p.MaxGap,
		FPS:    p.FPS,
	})
	if err != nil {
		return nil, err
	}

	var flash []float64
	if p.FlashEnd > p.FlashStart && p.FPS > 0 {
		flash, err = FlashCuts(ctx, s.detector, clip, p)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			logger.Error("flash window detection failed", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: flash window detection failed", ErrAnalysisFailed)
		}
		if len(flash) > 0 {
			segments = segment.InjectSplits(segments, flash, p.FPS)
		}
	}
	logger.Info("timeline built",
		slog.Int("segments", len(segments)),
		slog.Int("flash_cuts", len(flash)),
	)

	doc := NewCutsDocument(displayName(input.Audio.Name), clip.Duration(), p, onsets, segments, flash)
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode cuts document: %w", err)
	}
	if _, err := s.store.SaveFile(ctx, jobID, CutsJSONName, bytes.NewReader(payload)); err != nil {
		return nil, err
	}
	if _, err := s.store.SaveFile(ctx, jobID, CutsCSVName, bytes.NewReader(CutsCSV(segments))); err != nil {
		return nil, err
	}

	capability := s.renderer.Check(ctx)

	if capability.Available {
		if err := s.renderer.Waveform(ctx, audioPath, filepath.Join(jobDir, WaveformName)); err != nil {
			logger.Warn("waveform render failed", slog.String("error", err.Error()))
		}
	}

	render := s.renderVideo(ctx, renderRequest{
		jobID:      jobID,
		jobDir:     jobDir,
		audioPath:  audioPath,
		videos:     videoPaths,
		images:     imagePaths,
		segments:   segments,
		params:     p,
		capability: capability,
		logger:     logger,
	})

	cleanup := context.WithoutCancel(ctx)
	s.removeSources(cleanup, jobID, sources, logger)
	sources = nil

	artifacts, err := s.store.List(cleanup, jobID)
	if err != nil {
		return nil, err
	}

	success = true
	logger.Info("analysis completed", slog.Int("artifacts", len(artifacts)))

	return &AnalyzeOutput{
		JobID: jobID,
		Audio: AudioInfo{
			Filename:   displayName(input.Audio.Name),
			Duration:   clip.Duration(),
			SampleRate: clip.SampleRate,
		},
		Params:    p,
		Onsets:    onsets,
		Segments:  segments,
		Flash:     flash,
		Artifacts: artifacts,
		Render:    render,
	}, nil
}

// FlashCuts runs the second, denser onset pass over the flash window
// and returns the pruned, quantized cut times.
func FlashCuts(ctx context.Context, detector onset.Detector, clip *audio.Clip, p Params) ([]float64, error) {
	lo := math.Max(0, math.Min(p.FlashStart, p.FlashEnd))
	hi := math.Max(0, math.Max(p.FlashStart, p.FlashEnd))
	window := clip.Slice(lo, hi)
	if window.Duration() == 0 {
		return nil, nil
	}

	opts := onset.DefaultOptions()
	opts.Threshold = p.Threshold

	events, err := detector.Detect(ctx, window, opts)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	times := make([]float64, len(events))
	for i, e := range events {
		times[i] = e.Time + lo
	}

	minGap := math.Max(1.0/p.FPS, p.FlashGap)
	return segment.Quantize(segment.PruneMinGap(times, minGap), p.FPS), nil
}

// renderRequest bundles everything the render step needs.
type renderRequest struct {
	jobID      string
	jobDir     string
	audioPath  string
	videos     []string
	images     []string
	segments   []segment.Segment
	params     Params
	capability media.Capability
	logger     *slog.Logger
}

// renderVideo runs the optional render step. Render problems degrade
// to a RenderResult message; they never fail the analysis.
func (s *AnalyzeService) renderVideo(ctx context.Context, req renderRequest) RenderResult {
	result := RenderResult{Requested: req.params.Render}
	if !req.params.Render {
		return result
	}
	if !req.capability.Available {
		result.Message = "video rendering skipped: " + req.capability.Reason
		req.logger.Info("render skipped", slog.String("reason", req.capability.Reason))
		return result
	}
	if len(req.videos) == 0 && len(req.images) == 0 {
		result.Message = "no videos or PNG images were provided for rendering"
		return result
	}

	spec := media.RenderSpec{
		Segments:    req.segments,
		AudioPath:   req.audioPath,
		Videos:      req.videos,
		Images:      req.images,
		FPS:         req.params.FPS,
		ClipMode:    req.params.ClipMode,
		AspectRatio: req.params.AspectRatio,
		OutputPath:  filepath.Join(req.jobDir, req.params.OutputName),
		WorkDir:     req.jobDir,
	}

	if err := s.renderer.Render(ctx, spec); err != nil {
		req.logger.Error("render failed", slog.String("error", err.Error()))
		if len(req.videos) > 0 {
			result.Message = "ffmpeg video render failed"
		} else {
			result.Message = "ffmpeg image render failed"
		}
		return result
	}

	result.Rendered = true
	result.Output = req.params.OutputName
	req.logger.Info("render completed", slog.String("output", req.params.OutputName))

	url, err := s.uploadRendered(ctx, req.jobID, req.params.OutputName)
	switch {
	case err == nil && url != "":
		result.VideoURL = url
		req.logger.Info("video uploaded to S3", slog.String("url", url))
	case errors.Is(err, storage.ErrS3NotConfigured):
		// Local-only delivery
	case err != nil:
		req.logger.Warn("S3 upload failed", slog.String("error", err.Error()))
	}

	return result
}

// uploadRendered streams the rendered video to S3 when configured.
func (s *AnalyzeService) uploadRendered(ctx context.Context, jobID, name string) (string, error) {
	path, err := s.store.FilePath(jobID, name)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path) // #nosec G304 - path is resolved by the store
	if err != nil {
		return "", fmt.Errorf("open rendered video: %w", err)
	}
	defer func() { _ = f.Close() }()

	return s.store.UploadToS3(ctx, jobID+"/"+name, f)
}

// removeSources deletes the uploaded source files of a job.
func (s *AnalyzeService) removeSources(ctx context.Context, jobID string, names []string, logger *slog.Logger) {
	for _, name := range names {
		if err := s.store.RemoveFile(ctx, jobID, name); err != nil {
			logger.Warn("failed to remove uploaded source",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
		}
	}
}
