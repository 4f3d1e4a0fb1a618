package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/config"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognition"
)

// components are the long-lived collaborators shared by every command.
type components struct {
	adapter      *recognition.Adapter
	invoker      *analysis.Invoker
	orchestrator *pipeline.Orchestrator
}

// newComponents builds the recognition adapter, analysis invoker and
// orchestrator from cfg. With eager set the engine is constructed up front; a
// failure there is logged and construction is retried on first use.
func newComponents(ctx context.Context, cfg *config.Config, eager bool, logger *slog.Logger) (*components, error) {
	adapter := recognition.NewAdapter(cfg.ToRecognitionConfig(), recognition.WithLogger(logger))

	invoker, err := analysis.NewInvoker(ctx, cfg.ToAnalysisConfig(), analysis.WithLogger(logger))
	if err != nil {
		_ = adapter.Close()
		return nil, fmt.Errorf("failed to initialize analysis: %w", err)
	}
	if !invoker.Configured() {
		logger.Warn("No analysis credential configured; responses will carry reason missing_credential")
	}

	if eager {
		if err := adapter.Warm(ctx); err != nil {
			logger.Warn("Recognition engine warm-up failed; will retry on first request",
				"engine", adapter.EngineName(), "error", err)
		} else {
			logger.Info("Recognition engine ready", "engine", adapter.EngineName())
		}
	}

	orch := pipeline.New(cfg.ToPipelineConfig(), adapter, invoker, pipeline.WithLogger(logger))
	return &components{adapter: adapter, invoker: invoker, orchestrator: orch}, nil
}

// Close releases the engine and the analysis client.
func (c *components) Close() error {
	return errors.Join(c.adapter.Close(), c.invoker.Close())
}
