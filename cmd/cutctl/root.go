package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cutctl",
	Short: "cutctl drives the flash-cut analysis pipeline from the command line.",
	Long: `cutctl analyzes music tracks and renders flash-cut videos without the
HTTP server. The analyze command writes the same cuts.json and cuts.csv
artifacts as the API, render replays an existing cuts.json against video
clips or PNG stills, and check reports whether ffmpeg is usable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
