package cmd

import (
	"errors"
	"log/slog"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/labelscan/internal/batch"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch <path>...",
	Short: "Analyze many label images concurrently",
	Long: `Analyze every image found under the given files and directories.

Directories are scanned for jpg, jpeg, png and webp files; use --include and
--exclude with doublestar patterns to narrow the selection.

Examples:
  labelscan batch ./photos
  labelscan batch ./photos --recursive --workers 8 --output results.jsonl
  labelscan batch a.jpg b.png --format text
  labelscan batch ./photos -r --exclude "**/thumbs/**" --progress --stats`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := slog.Default()

	bcfg := cfg.ToBatchConfig()
	bcfg.Recursive, _ = cmd.Flags().GetBool("recursive")
	bcfg.OutputFile, _ = cmd.Flags().GetString("output")
	bcfg.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bcfg.ShowStats, _ = cmd.Flags().GetBool("stats")
	bcfg.Quiet, _ = cmd.Flags().GetBool("quiet")
	if err := bcfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := newComponents(ctx, cfg, true, logger)
	if err != nil {
		return err
	}
	defer func() { _ = comps.Close() }()

	res, runErr := batch.Run(ctx, comps.orchestrator, args, bcfg, logger)
	if res == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if err := res.SaveResults(out, bcfg.Format, bcfg.OutputFile, bcfg.Quiet); err != nil {
		return errors.Join(runErr, err)
	}
	if bcfg.ShowStats {
		res.PrintStats(cmd.ErrOrStderr())
	}
	if runErr != nil {
		return runErr
	}
	if failed := res.Stats().Failed; failed > 0 {
		logger.Warn("Some images failed", "failed", failed, "total", len(res.Items))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntP("workers", "w", runtime.NumCPU(), "number of parallel workers")
	batchCmd.Flags().BoolP("recursive", "r", false, "scan directories recursively")
	batchCmd.Flags().StringSlice("include", nil, "doublestar patterns of files to include")
	batchCmd.Flags().StringSlice("exclude", nil, "doublestar patterns of files to exclude")
	batchCmd.Flags().StringP("format", "f", batch.FormatJSONL, "output format (jsonl, json, text)")
	batchCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	batchCmd.Flags().Bool("stats", false, "print processing statistics on stderr")
	batchCmd.Flags().BoolP("quiet", "q", false, "suppress non-result output")
	batchCmd.Flags().Bool("fail-fast", false, "stop at the first failed image")

	_ = viper.BindPFlag("batch.workers", batchCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("batch.format", batchCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("batch.include", batchCmd.Flags().Lookup("include"))
	_ = viper.BindPFlag("batch.exclude", batchCmd.Flags().Lookup("exclude"))
	_ = viper.BindPFlag("batch.fail_fast", batchCmd.Flags().Lookup("fail-fast"))
}
