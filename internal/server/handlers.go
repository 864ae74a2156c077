package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/flashcut/flashcut-api/internal/audio"
	"github.com/flashcut/flashcut-api/internal/job"
	"github.com/flashcut/flashcut-api/internal/media"
	"github.com/flashcut/flashcut-api/internal/onset"
	"github.com/flashcut/flashcut-api/internal/segment"
	"github.com/flashcut/flashcut-api/internal/storage"
)

//go:embed index.html
var indexHTML []byte

const (
	// defaultMaxUploadBytes caps the /analyze request body.
	defaultMaxUploadBytes = 500 << 20
	// multipartMemoryLimit is how much of a parsed form stays in
	// memory before spilling to temp files.
	multipartMemoryLimit = 32 << 20
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        *job.AnalyzeService
	store          storage.Store
	renderer       media.Renderer
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes overrides the /analyze request body cap.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.AnalyzeService, store storage.Store, renderer media.Renderer, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:        service,
		store:          store,
		renderer:       renderer,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Index handles GET / requests with the embedded upload form.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexHTML)
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{OK: true})
}

// FFmpegCheck handles GET /ffmpeg-check requests. It reports which
// rendering tools are executable; it never exposes the process
// environment.
func (h *Handlers) FFmpegCheck(w http.ResponseWriter, r *http.Request) {
	capability := h.renderer.Check(r.Context())
	writeJSON(w, http.StatusOK, FFmpegCheckResponse{
		FFmpegAvailable:  capability.Available,
		FFmpegPath:       capability.FFmpegPath,
		FFmpegVersion:    capability.FFmpegVersion,
		FFprobeAvailable: capability.FFprobeAvailable(),
		FFprobePath:      capability.FFprobePath,
		FFprobeVersion:   capability.FFprobeVersion,
		Reason:           capability.Reason,
		CheckedAt:        time.Now().UTC().Format(time.RFC3339),
	})
}

// Analyze handles POST /analyze requests. The request is a multipart
// form carrying the audio track, optional visual sources, and the
// analysis parameters.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d MB", h.maxUploadBytes>>20), "UPLOAD_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_INPUT")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	form, err := parseAnalyzeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return
	}

	audioFiles := r.MultipartForm.File["audio"]
	if len(audioFiles) == 0 {
		writeError(w, http.StatusBadRequest, "audio file is required", "INVALID_INPUT")
		return
	}

	// Uploads stay open for the duration of the analysis.
	var closers []multipart.File
	defer func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}()
	open := func(fh *multipart.FileHeader) (job.Upload, error) {
		f, err := fh.Open()
		if err != nil {
			return job.Upload{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
		}
		closers = append(closers, f)
		return job.Upload{Name: fh.Filename, Data: f}, nil
	}

	input := job.AnalyzeInput{Params: form.params()}
	if input.Audio, err = open(audioFiles[0]); err != nil {
		h.logger.Error("failed to open upload", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
		return
	}
	for _, fh := range r.MultipartForm.File["videos"] {
		up, err := open(fh)
		if err != nil {
			h.logger.Error("failed to open upload", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
			return
		}
		input.Videos = append(input.Videos, up)
	}
	for _, fh := range r.MultipartForm.File["images"] {
		up, err := open(fh)
		if err != nil {
			h.logger.Error("failed to open upload", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
			return
		}
		input.Images = append(input.Images, up)
	}

	out, err := h.service.Analyze(r.Context(), input)
	if err != nil {
		h.writeAnalyzeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAnalyzeResponse(out))
}

// writeAnalyzeError maps analysis errors to HTTP responses.
func (h *Handlers) writeAnalyzeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, segment.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.Is(err, audio.ErrEmptyAudio):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "EMPTY_AUDIO")
	case errors.Is(err, job.ErrAnalysisFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "ANALYSIS_FAILED")
	default:
		h.logger.Error("analysis failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// Download handles GET /jobs/{job_id}/{filename} requests.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	filename := r.PathValue("filename")

	path, err := h.store.FilePath(jobID, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			writeError(w, http.StatusNotFound, "artifact not found", "NOT_FOUND")
			return
		}
		h.logger.Error("artifact lookup failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// params converts the validated form into analysis parameters.
func (f AnalyzeForm) params() job.Params {
	return job.Params{
		FPS:         f.FPS,
		Threshold:   f.Threshold,
		MaxGap:      f.MaxGap,
		MinGap:      f.MinGap,
		FlashStart:  f.FlashStart,
		FlashEnd:    f.FlashEnd,
		FlashGap:    f.FlashGap,
		Render:      f.Render,
		ClipMode:    media.ClipMode(f.ClipMode),
		AspectRatio: f.AspectRatio,
		OutputName:  f.OutputName,
	}
}

// parseAnalyzeForm reads the analyze form fields, filling absent
// values with the documented defaults.
func parseAnalyzeForm(r *http.Request) (AnalyzeForm, error) {
	def := job.DefaultParams()
	form := AnalyzeForm{
		Render:      def.Render,
		ClipMode:    string(def.ClipMode),
		AspectRatio: def.AspectRatio,
		OutputName:  def.OutputName,
	}

	var err error
	if form.FPS, err = formFloat(r, "fps", def.FPS); err != nil {
		return form, err
	}
	if form.Threshold, err = formFloat(r, "threshold", def.Threshold); err != nil {
		return form, err
	}
	if form.MaxGap, err = formFloat(r, "max_gap", def.MaxGap); err != nil {
		return form, err
	}
	if form.MinGap, err = formFloat(r, "min_gap", def.MinGap); err != nil {
		return form, err
	}
	if form.FlashStart, err = formFloat(r, "flash_start", def.FlashStart); err != nil {
		return form, err
	}
	if form.FlashEnd, err = formFloat(r, "flash_end", def.FlashEnd); err != nil {
		return form, err
	}
	if form.FlashGap, err = formFloat(r, "flash_gap", def.FlashGap); err != nil {
		return form, err
	}

	if v := r.FormValue("do_render"); v != "" {
		form.Render = parseFormBool(v)
	}
	if v := strings.TrimSpace(r.FormValue("clip_mode")); v != "" {
		form.ClipMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(r.FormValue("aspect_ratio")); v != "" {
		form.AspectRatio = v
	}
	if v := strings.TrimSpace(r.FormValue("output_name")); v != "" {
		form.OutputName = v
	}

	return form, nil
}

// formFloat parses a numeric form field, returning def when absent.
func formFloat(r *http.Request, name string, def float64) (float64, error) {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, v)
	}
	return f, nil
}

// parseFormBool accepts the form encodings of a true value.
func parseFormBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

// newAnalyzeResponse maps the analysis output to the wire format.
func newAnalyzeResponse(out *job.AnalyzeOutput) AnalyzeResponse {
	onsets := out.Onsets
	if onsets == nil {
		onsets = []onset.Onset{}
	}
	segments := out.Segments
	if segments == nil {
		segments = []segment.Segment{}
	}
	flash := out.Flash
	if flash == nil {
		flash = []float64{}
	}

	artifacts := make([]ArtifactRef, 0, len(out.Artifacts))
	for _, a := range out.Artifacts {
		artifacts = append(artifacts, ArtifactRef{
			Name: a.Name,
			Size: a.Size,
			URL:  fmt.Sprintf("/jobs/%s/%s", out.JobID, url.PathEscape(a.Name)),
		})
	}

	return AnalyzeResponse{
		JobID: out.JobID,
		Audio: AudioMeta{
			Filename:   out.Audio.Filename,
			Duration:   out.Audio.Duration,
			SampleRate: out.Audio.SampleRate,
		},
		Params: ParamsEcho{
			FPS:         out.Params.FPS,
			Threshold:   out.Params.Threshold,
			MaxGap:      out.Params.MaxGap,
			MinGap:      out.Params.MinGap,
			FlashStart:  out.Params.FlashStart,
			FlashEnd:    out.Params.FlashEnd,
			FlashGap:    out.Params.FlashGap,
			Render:      out.Params.Render,
			ClipMode:    string(out.Params.ClipMode),
			AspectRatio: out.Params.AspectRatio,
			OutputName:  out.Params.OutputName,
		},
		Onsets:    onsets,
		Segments:  segments,
		Flash:     flash,
		Artifacts: artifacts,
		Render: RenderBlock{
			Requested: out.Render.Requested,
			Rendered:  out.Render.Rendered,
			Message:   out.Render.Message,
			Output:    out.Render.Output,
			VideoURL:  out.Render.VideoURL,
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
