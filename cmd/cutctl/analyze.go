package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flashcut/flashcut-api/internal/audio"
	"github.com/flashcut/flashcut-api/internal/job"
	"github.com/flashcut/flashcut-api/internal/onset"
	"github.com/flashcut/flashcut-api/internal/segment"
)

var (
	analyzeOut        string
	analyzeFPS        float64
	analyzeThreshold  float64
	analyzeMaxGap     float64
	analyzeMinGap     float64
	analyzeFlashStart float64
	analyzeFlashEnd   float64
	analyzeFlashGap   float64
	analyzeFFmpeg     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio>",
	Short: "Detect onsets in a track and write the cut timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	def := job.DefaultParams()
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", ".", "directory for cuts.json and cuts.csv")
	analyzeCmd.Flags().Float64Var(&analyzeFPS, "fps", def.FPS, "timeline grid in frames per second")
	analyzeCmd.Flags().Float64Var(&analyzeThreshold, "threshold", def.Threshold, "confidence threshold for onsets")
	analyzeCmd.Flags().Float64Var(&analyzeMaxGap, "max-gap", def.MaxGap, "maximum seconds between cuts")
	analyzeCmd.Flags().Float64Var(&analyzeMinGap, "min-gap", def.MinGap, "minimum seconds between cuts")
	analyzeCmd.Flags().Float64Var(&analyzeFlashStart, "flash-start", def.FlashStart, "flash window start in seconds")
	analyzeCmd.Flags().Float64Var(&analyzeFlashEnd, "flash-end", def.FlashEnd, "flash window end in seconds")
	analyzeCmd.Flags().Float64Var(&analyzeFlashGap, "flash-gap", def.FlashGap, "minimum seconds between flash cuts")
	analyzeCmd.Flags().StringVar(&analyzeFFmpeg, "ffmpeg", "", "path to the ffmpeg binary")

	analyzeCmd.Example = `  # Write cuts.json and cuts.csv into a directory
  cutctl analyze track.wav -o cuts/

  # Denser cuts with a lower confidence bar
  cutctl analyze track.wav --threshold 0.2 --max-gap 2`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p := job.DefaultParams()
	p.FPS = analyzeFPS
	p.Threshold = analyzeThreshold
	p.MaxGap = analyzeMaxGap
	p.MinGap = analyzeMinGap
	p.FlashStart = analyzeFlashStart
	p.FlashEnd = analyzeFlashEnd
	p.FlashGap = analyzeFlashGap

	decoder := audio.NewFFmpegDecoder(analyzeFFmpeg)
	clip, err := decoder.Decode(ctx, args[0])
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}

	detector := onset.NewFluxDetector()
	opts := onset.DefaultOptions()
	opts.Threshold = p.Threshold
	onsets, err := detector.Detect(ctx, clip, opts)
	if err != nil {
		return fmt.Errorf("detect onsets: %w", err)
	}

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
		return err
	}

	var flash []float64
	if p.FlashEnd > p.FlashStart && p.FPS > 0 {
		if flash, err = job.FlashCuts(ctx, detector, clip, p); err != nil {
			return fmt.Errorf("detect flash cuts: %w", err)
		}
		if len(flash) > 0 {
			segments = segment.InjectSplits(segments, flash, p.FPS)
		}
	}

	doc := job.NewCutsDocument(filepath.Base(args[0]), clip.Duration(), p, onsets, segments, flash)
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cuts document: %w", err)
	}

	if err := os.MkdirAll(analyzeOut, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	jsonPath := filepath.Join(analyzeOut, job.CutsJSONName)
	if err := os.WriteFile(jsonPath, payload, 0600); err != nil {
		return fmt.Errorf("write %s: %w", job.CutsJSONName, err)
	}
	csvPath := filepath.Join(analyzeOut, job.CutsCSVName)
	if err := os.WriteFile(csvPath, job.CutsCSV(segments), 0600); err != nil {
		return fmt.Errorf("write %s: %w", job.CutsCSVName, err)
	}

	fmt.Printf("analyzed %s: %.2fs, %d onsets, %d segments, %d flash cuts\n",
		filepath.Base(args[0]), clip.Duration(), len(onsets), len(segments), len(flash))
	fmt.Println("wrote", jsonPath)
	fmt.Println("wrote", csvPath)
	return nil
}
