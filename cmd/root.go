package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "steno-caption",
	Short: "Live caption relay: writer jobs, PIN-gated viewers, realtime fan-out",
	Long:  `HTTP + WebSocket API. Commands: api, command.`,
	RunE:  runAPI, // default: run API (same as "steno-caption api")
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

// Execute runs the root command and returns the error (for main to log.Fatal).
func Execute() error {
	return rootCmd.Execute()
}
