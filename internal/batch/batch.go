// Package batch runs many label images through the pipeline concurrently and
// writes the results as JSON lines, JSON or text.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// ErrNoFiles is returned when discovery finds nothing to process.
var ErrNoFiles = errors.New("no image files found")

// Result holds the result of batch processing.
type Result struct {
	Items       []Item
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes a batch.
type Stats struct {
	Total            int
	Succeeded        int
	Failed           int
	AnalysisOK       int
	Duration         time.Duration
	AveragePerImage  time.Duration
	ThroughputPerSec float64
}

// Run discovers image files under paths and processes them with proc. Per-file
// failures are reported in the items; the returned error covers discovery,
// pool setup and, with FailFast, the first failed file.
func Run(ctx context.Context, proc Processor, paths []string, cfg *Config, logger *slog.Logger) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	files, err := Discover(paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	logger.Info("batch discovered files", "count", len(files), "workers", cfg.Workers)

	var progress ProgressCallback
	if cfg.ShowProgress && !cfg.Quiet {
		progress = NewConsoleProgress(os.Stderr, "Processing: ").WithUpdateInterval(cfg.ProgressInterval)
	} else {
		progress = NewLogProgress(logger, 0)
	}

	start := time.Now()
	items, err := processFiles(ctx, proc, files, cfg.Workers, cfg.FailFast, progress, logger)
	res := &Result{Items: items, Duration: time.Since(start), WorkerCount: cfg.Workers}
	if err != nil {
		return res, fmt.Errorf("batch processing failed: %w", err)
	}
	return res, nil
}

// Stats computes summary statistics.
func (r *Result) Stats() Stats {
	s := Stats{Total: len(r.Items), Duration: r.Duration}
	for _, it := range r.Items {
		if it.Err != nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		if it.Response.LLM.OK() {
			s.AnalysisOK++
		}
	}
	if s.Total > 0 {
		s.AveragePerImage = r.Duration / time.Duration(s.Total)
	}
	if r.Duration > 0 {
		s.ThroughputPerSec = float64(s.Total) / r.Duration.Seconds()
	}
	return s
}

// SaveResults writes the formatted results to outputFile, or to stdout when
// outputFile is empty.
func (r *Result) SaveResults(stdout io.Writer, format, outputFile string, quiet bool) error {
	if outputFile == "" {
		return WriteResults(stdout, r.Items, format)
	}

	f, err := os.Create(outputFile) //nolint:gosec // output path is a CLI flag
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteResults(f, r.Items, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if !quiet {
		_, _ = fmt.Fprintf(stdout, "Results written to %s\n", outputFile)
	}
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	s := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", s.Succeeded)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "  Analyzed: %d\n", s.AnalysisOK)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", s.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", s.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", s.ThroughputPerSec)
}
