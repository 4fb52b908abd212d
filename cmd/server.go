package cmd

import (
	"github.com/spf13/cobra"

	"AutoMixFM/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the AutoMixFM HTTP server",
	Long:  `Run the HTTP server: upload and analysis endpoints, playlist generation, mix rendering and progress reporting.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
