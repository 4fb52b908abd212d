package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"AutoMixFM/config"
	"AutoMixFM/core/audio"
	"AutoMixFM/logger"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyze audio files and print tempo, key and energy as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger.Init(logger.Config{Level: logger.WarnLevel})

		analyzer := audio.NewFFmpegAnalyzer(cfg.FFmpegPath)

		results := make([]*audio.Analysis, 0, len(args))
		for _, path := range args {
			results = append(results, analyzer.Analyze(context.Background(), path))
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
