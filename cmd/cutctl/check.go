package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashcut/flashcut-api/internal/media"
)

var (
	checkFFmpeg  string
	checkFFprobe string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether ffmpeg and ffprobe can run",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkFFmpeg, "ffmpeg", "", "path to the ffmpeg binary")
	checkCmd.Flags().StringVar(&checkFFprobe, "ffprobe", "", "path to the ffprobe binary")
}

func runCheck(cmd *cobra.Command, args []string) error {
	renderer := media.NewFFmpegRenderer(checkFFmpeg, checkFFprobe)
	capability := renderer.Check(cmd.Context())

	if !capability.Available {
		return errors.New(capability.Reason)
	}

	fmt.Printf("ffmpeg:  %s (%s)\n", capability.FFmpegPath, capability.FFmpegVersion)
	if capability.FFprobeAvailable() {
		fmt.Printf("ffprobe: %s (%s)\n", capability.FFprobePath, capability.FFprobeVersion)
	} else {
		fmt.Println("ffprobe: not found; renders fall back to loop mode")
	}
	fmt.Println("rendering available")
	return nil
}
