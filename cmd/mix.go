package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"AutoMixFM/config"
	"AutoMixFM/core/audio"
	"AutoMixFM/core/library"
	"AutoMixFM/core/mix"
	"AutoMixFM/core/playlist"
	"AutoMixFM/logger"
)

var (
	mixMinutes int
	mixOutDir  string
	mixSeed    int64
)

// mixCmd renders a mix headlessly: no database, no Redis, no MinIO.
// Everything lives in memory for the duration of the run.
var mixCmd = &cobra.Command{
	Use:   "mix <file>...",
	Short: "Analyze files, sequence them and render a mix in one pass",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger.Init(logger.Config{Level: logger.LogLevel(cfg.LogLevel)})
		defer logger.Sync()

		ctx := context.Background()

		analyzer := audio.NewFFmpegAnalyzer(cfg.FFmpegPath)
		lib := library.New(analyzer, nil)
		for _, path := range args {
			if _, err := lib.Ingest(ctx, path); err != nil {
				logger.Warn("skipping file", logger.String("path", path), logger.ErrorField(err))
			}
		}
		if lib.Len() == 0 {
			return fmt.Errorf("no usable tracks among %d input files", len(args))
		}

		seed := mixSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		sequencer := playlist.New(rand.New(rand.NewSource(seed)))

		target := time.Duration(mixMinutes) * time.Minute
		sequence := sequencer.Sequence(lib.Tracks(), target)
		if len(sequence) == 0 {
			return fmt.Errorf("no playable tracks: analysis could not determine BPM or key")
		}

		processor, err := audio.NewFFmpegProcessor(cfg.FFmpegPath)
		if err != nil {
			return err
		}
		defer processor.Cleanup()

		outDir := mixOutDir
		if outDir == "" {
			outDir = cfg.MixOutputDir
		}

		assembler := mix.NewAssembler(processor, outDir, cfg.AudioBitrate)
		result, err := assembler.Assemble(ctx, sequence, target, func(p mix.Progress) {
			fmt.Printf("[%3d%%] %s\n", p.Percent, p.Message)
		})
		if err != nil {
			return err
		}

		fmt.Printf("Mix written to %s (%d tracks, %s)\n",
			result.OutputPath, len(sequence),
			time.Duration(result.DurationMs)*time.Millisecond)
		return nil
	},
}

func init() {
	mixCmd.Flags().IntVar(&mixMinutes, "minutes", 30, "target mix length in minutes")
	mixCmd.Flags().StringVar(&mixOutDir, "out", "", "output directory (defaults to MIX_OUTPUT_DIR)")
	mixCmd.Flags().Int64Var(&mixSeed, "seed", 0, "random seed for reproducible sequencing (0 = time-based)")
	rootCmd.AddCommand(mixCmd)
}
