package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"AutoMixFM/server"
)

var rootCmd = &cobra.Command{
	Use:   "automixfm",
	Short: "AutoMixFM builds continuous DJ mixes from your music library.",
	Run: func(cmd *cobra.Command, args []string) {
		// Bare invocation runs the server, same as the server subcommand.
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
