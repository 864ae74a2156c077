package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flashcut/flashcut-api/internal/job"
	"github.com/flashcut/flashcut-api/internal/media"
)

var (
	renderCuts    string
	renderAudio   string
	renderVideos  []string
	renderImages  []string
	renderOut     string
	renderAspect  string
	renderFFmpeg  string
	renderFFprobe string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the cut video described by an existing cuts.json",
	RunE:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderCuts, "cuts", job.CutsJSONName, "path to the cuts document")
	renderCmd.Flags().StringVar(&renderAudio, "audio", "", "path to the audio track (required)")
	renderCmd.Flags().StringSliceVar(&renderVideos, "videos", nil, "video clips that fill the segments")
	renderCmd.Flags().StringSliceVar(&renderImages, "images", nil, "PNG stills used when no videos are given")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", job.DefaultOutputName, "output video path")
	renderCmd.Flags().StringVar(&renderAspect, "aspect", "16:9", "output aspect ratio (16:9, 1:1, 9:16, 4:3)")
	renderCmd.Flags().StringVar(&renderFFmpeg, "ffmpeg", "", "path to the ffmpeg binary")
	renderCmd.Flags().StringVar(&renderFFprobe, "ffprobe", "", "path to the ffprobe binary")
	_ = renderCmd.MarkFlagRequired("audio")

	renderCmd.Example = `  # Cut two clips against an analyzed track
  cutctl render --audio track.wav --videos a.mp4,b.mp4

  # Stills only, vertical output
  cutctl render --audio track.wav --images one.png,two.png --aspect 9:16`
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(renderCuts) // #nosec G304
	if err != nil {
		return fmt.Errorf("read cuts document: %w", err)
	}
	var doc job.CutsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse cuts document: %w", err)
	}
	if len(doc.Segments) == 0 {
		return errors.New("cuts document has no segments")
	}
	if len(renderVideos) == 0 && len(renderImages) == 0 {
		return errors.New("no videos or PNG images were provided for rendering")
	}

	renderer := media.NewFFmpegRenderer(renderFFmpeg, renderFFprobe)
	if capability := renderer.Check(ctx); !capability.Available {
		return errors.New(capability.Reason)
	}

	clipMode := media.ClipModeHead
	if media.ClipMode(doc.ClipMode) == media.ClipModeTail {
		clipMode = media.ClipModeTail
	}

	spec := media.RenderSpec{
		Segments:    doc.Segments,
		AudioPath:   renderAudio,
		Videos:      renderVideos,
		Images:      renderImages,
		FPS:         doc.FPS,
		ClipMode:    clipMode,
		AspectRatio: renderAspect,
		OutputPath:  renderOut,
	}
	if err := renderer.Render(ctx, spec); err != nil {
		return fmt.Errorf("render video: %w", err)
	}

	fmt.Printf("rendered %s (%d segments, %.2fs)\n", renderOut, len(doc.Segments), doc.Duration)
	return nil
}
