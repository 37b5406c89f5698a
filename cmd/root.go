package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"BeatFlow/server"
)

var rootCmd = &cobra.Command{
	Use:   "beatflow",
	Short: "BeatFlow is a beat marketplace and recording workspace.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
