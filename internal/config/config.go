package config

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/admission"
	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/batch"
	"github.com/MeKo-Tech/labelscan/internal/imageprep"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognition"
	"github.com/MeKo-Tech/labelscan/internal/server"
)

const redacted = "********"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	srv := server.DefaultConfig()
	rec := recognition.DefaultConfig()
	an := analysis.DefaultConfig()

	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		Image: ImageConfig{
			MaxUploadBytes: admission.DefaultMaxBytes,
			MaxSide:        imageprep.DefaultMaxSide,
		},
		Engine: EngineConfig{
			Kind:       rec.Kind,
			Endpoint:   rec.Endpoint,
			ResultPath: rec.ResultPath,
			Language:   rec.Language,
			Timeout:    rec.Timeout,
		},
		Analysis: AnalysisConfig{
			Provider:    an.Provider,
			Temperature: an.Temperature,
			MaxTokens:   an.MaxTokens,
			Timeout:     an.Timeout,
		},
		Server: ServerConfig{
			Host:            srv.Host,
			Port:            srv.Port,
			CORSOrigins:     srv.CORSOrigins,
			RequestTimeout:  srv.RequestTimeout,
			ReadTimeout:     srv.ReadTimeout,
			WriteTimeout:    srv.WriteTimeout,
			ShutdownTimeout: srv.ShutdownTimeout,
		},
		Batch: BatchConfig{
			Workers: runtime.NumCPU(),
			Format:  batch.FormatJSONL,
			Include: batch.DefaultIncludePatterns,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if err := oneOf("log level", c.LogLevel, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("log format", c.LogFormat, "json", "text"); err != nil {
		return err
	}

	if c.Image.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid max upload bytes: %d (must be positive)", c.Image.MaxUploadBytes)
	}
	if c.Image.MaxSide <= 0 {
		return fmt.Errorf("invalid max side: %d (must be positive)", c.Image.MaxSide)
	}

	if err := oneOf("engine kind", c.Engine.Kind, recognition.KindPaddleX, recognition.KindTesseract); err != nil {
		return err
	}
	if c.Engine.Kind == recognition.KindPaddleX {
		if err := validateURL("engine endpoint", c.Engine.Endpoint); err != nil {
			return err
		}
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("invalid engine timeout: %v (must not be negative)", c.Engine.Timeout)
	}

	if err := oneOf("analysis provider", c.Analysis.Provider,
		analysis.ProviderOpenAI, analysis.ProviderAnthropic, analysis.ProviderGemini); err != nil {
		return err
	}
	if c.Analysis.BaseURL != "" {
		if err := validateURL("analysis base url", c.Analysis.BaseURL); err != nil {
			return err
		}
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 2 {
		return fmt.Errorf("invalid analysis temperature: %v (must be between 0 and 2)", c.Analysis.Temperature)
	}
	if c.Analysis.MaxTokens <= 0 {
		return fmt.Errorf("invalid analysis max tokens: %d (must be positive)", c.Analysis.MaxTokens)
	}
	if c.Analysis.Timeout < 0 {
		return fmt.Errorf("invalid analysis timeout: %v (must not be negative)", c.Analysis.Timeout)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.RequestTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return errors.New("invalid server timeouts (must not be negative)")
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return oneOf("batch format", c.Batch.Format, batch.FormatJSONL, batch.FormatJSON, batch.FormatText)
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Analysis.APIKey != "" {
		c.Analysis.APIKey = redacted
	}
	return c
}

// ToServerConfig converts the config to the HTTP server configuration.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		CORSOrigins:     c.Server.CORSOrigins,
		MaxUploadBytes:  c.Image.MaxUploadBytes,
		RequestTimeout:  c.Server.RequestTimeout,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
}

// ToRecognitionConfig converts the config to the recognition adapter configuration.
func (c *Config) ToRecognitionConfig() recognition.Config {
	return recognition.Config{
		Kind:       c.Engine.Kind,
		Endpoint:   c.Engine.Endpoint,
		ResultPath: c.Engine.ResultPath,
		Language:   c.Engine.Language,
		Timeout:    c.Engine.Timeout,
		Debug:      c.Engine.Debug,
	}
}

// ToAnalysisConfig converts the config to the analysis invoker configuration.
func (c *Config) ToAnalysisConfig() analysis.Config {
	return analysis.Config{
		Provider:    c.Analysis.Provider,
		APIKey:      c.Analysis.APIKey,
		BaseURL:     c.Analysis.BaseURL,
		Model:       c.Analysis.Model,
		Temperature: c.Analysis.Temperature,
		MaxTokens:   c.Analysis.MaxTokens,
		Timeout:     c.Analysis.Timeout,
	}
}

// ToPipelineConfig converts the config to the orchestrator limits.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		MaxUploadBytes: c.Image.MaxUploadBytes,
		Image:          imageprep.Options{MaxSide: c.Image.MaxSide},
	}
}

// ToBatchConfig converts the config to batch runner settings. Progress and
// output destination are left to the caller.
func (c *Config) ToBatchConfig() *batch.Config {
	cfg := batch.DefaultConfig()
	cfg.Workers = c.Batch.Workers
	cfg.Format = c.Batch.Format
	cfg.IncludePatterns = c.Batch.Include
	cfg.ExcludePatterns = c.Batch.Exclude
	cfg.FailFast = c.Batch.FailFast
	return cfg
}

func oneOf(name, value string, valid ...string) error {
	if slices.Contains(valid, value) {
		return nil
	}
	return fmt.Errorf("invalid %s: %q (must be one of: %s)", name, value, strings.Join(valid, ", "))
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q (must be an absolute URL)", name, raw)
	}
	return nil
}
