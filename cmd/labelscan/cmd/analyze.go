package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelscan/internal/batch"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

// analyzeCmd represents the analyze command.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <image|->",
	Short: "Analyze a single label image",
	Long: `Run one label photo through recognition and analysis and print the result.

Use "-" to read the image from standard input.

Examples:
  labelscan analyze label.jpg
  labelscan analyze label.png --format text
  cat label.webp | labelscan analyze -`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != batch.FormatJSON && format != batch.FormatText {
		return fmt.Errorf("invalid format %q (must be json or text)", format)
	}

	name := args[0]
	data, err := readImageArg(cmd.InOrStdin(), name)
	if err != nil {
		return err
	}

	cfg := GetConfig()
	logger := slog.Default()
	ctx := cmd.Context()

	comps, err := newComponents(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer func() { _ = comps.Close() }()

	resp, err := comps.orchestrator.Process(ctx, pipeline.Request{Data: data, RequestID: uuid.NewString()})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", name, err)
	}

	out := cmd.OutOrStdout()
	if format == batch.FormatText {
		return batch.WriteResults(out, []batch.Item{{File: name, Response: resp}}, batch.FormatText)
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func readImageArg(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name) //nolint:gosec // path is a CLI argument
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("format", "f", batch.FormatJSON, "output format (json, text)")
}
