package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/labelscan/internal/server"
	"github.com/MeKo-Tech/labelscan/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for label analysis",
	Long: `Start an HTTP server that accepts label photos and returns the transcript
and analysis.

The server provides the following endpoints:
  GET  /            - Upload form
  POST /analyze     - Analyze an uploaded image (multipart field "image")
  GET  /ws/analyze  - WebSocket: send a binary image, receive stage updates
  GET  /health      - Health check endpoint
  GET  /metrics     - Prometheus metrics

Examples:
  labelscan serve
  labelscan serve --port 8000 --eager
  labelscan serve --host 127.0.0.1 --cors-origin https://app.example`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := newComponents(ctx, cfg, cfg.Engine.Eager, logger)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("Cleaning up server resources")
		if err := comps.Close(); err != nil {
			logger.Error("Server cleanup error", "error", err)
		}
	}()

	srv := server.NewServer(cfg.ToServerConfig(), comps.orchestrator,
		server.WithLogger(logger),
		server.WithEngineStatus(comps.adapter),
		server.WithAnalysisConfigured(comps.invoker.Configured()),
		server.WithVersion(version.Version))

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "server host")
	serveCmd.Flags().IntP("port", "p", 8000, "server port")
	serveCmd.Flags().StringSlice("cors-origin", []string{"*"}, "allowed CORS origins")
	serveCmd.Flags().Duration("request-timeout", 0, "per-request processing timeout (0 uses the configured value)")
	serveCmd.Flags().Bool("eager", false, "construct the recognition engine at startup")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origin"))
	_ = viper.BindPFlag("server.request_timeout", serveCmd.Flags().Lookup("request-timeout"))
	_ = viper.BindPFlag("engine.eager", serveCmd.Flags().Lookup("eager"))
}
