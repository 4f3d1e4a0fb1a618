// Package support holds the step definitions of the HTTP API feature suite.
package support

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/config"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognition"
	"github.com/MeKo-Tech/labelscan/internal/server"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Config config.Config
	Engine *FakeEngine
	Chat   *FakeChat

	adapter *recognition.Adapter
	invoker *analysis.Invoker
	API     *httptest.Server

	LastStatus  int
	LastBody    []byte
	LastHeaders http.Header
}

// NewTestContext starts the fake backends. The API server is started lazily
// so steps can adjust the configuration first.
func NewTestContext() *TestContext {
	tc := &TestContext{
		Config: config.DefaultConfig(),
		Engine: NewFakeEngine(),
		Chat:   NewFakeChat(),
	}
	tc.Config.Engine.Endpoint = tc.Engine.Server.URL
	tc.Config.Analysis.BaseURL = tc.Chat.Server.URL + "/"
	tc.Config.Analysis.APIKey = "sk-test"
	return tc
}

// StartAPI wires the configured components behind an httptest server.
func (tc *TestContext) StartAPI() error {
	if tc.API != nil {
		return nil
	}
	if err := tc.Config.Validate(); err != nil {
		return fmt.Errorf("invalid scenario config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tc.adapter = recognition.NewAdapter(tc.Config.ToRecognitionConfig(), recognition.WithLogger(logger))
	inv, err := analysis.NewInvoker(context.Background(), tc.Config.ToAnalysisConfig(), analysis.WithLogger(logger))
	if err != nil {
		return err
	}
	tc.invoker = inv

	orch := pipeline.New(tc.Config.ToPipelineConfig(), tc.adapter, tc.invoker, pipeline.WithLogger(logger))
	srv := server.NewServer(tc.Config.ToServerConfig(), orch,
		server.WithLogger(logger),
		server.WithEngineStatus(tc.adapter),
		server.WithAnalysisConfigured(tc.invoker.Configured()),
		server.WithVersion("test"))
	tc.API = httptest.NewServer(srv.Handler())
	return nil
}

// Cleanup stops every server the scenario started.
func (tc *TestContext) Cleanup() error {
	closeAll(tc.Engine.Server, tc.Chat.Server)
	if tc.API != nil {
		tc.API.Close()
	}
	var errs []error
	if tc.adapter != nil {
		errs = append(errs, tc.adapter.Close())
	}
	if tc.invoker != nil {
		errs = append(errs, tc.invoker.Close())
	}
	return errors.Join(errs...)
}
