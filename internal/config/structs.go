//nolint:lll
package config

import "time"

// Config represents the complete configuration for labelscan. It covers every
// command (serve, analyze, batch) and is loaded from a configuration file,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Image admission and normalization
	Image ImageConfig `mapstructure:"image" yaml:"image" json:"image"`

	// Recognition engine
	Engine EngineConfig `mapstructure:"engine" yaml:"engine" json:"engine"`

	// Analysis backend
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis" json:"analysis"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// ImageConfig bounds accepted uploads and normalized images.
type ImageConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes" json:"max_upload_bytes"`
	MaxSide        int   `mapstructure:"max_side" yaml:"max_side" json:"max_side"`
}

// EngineConfig selects and tunes the recognition engine.
type EngineConfig struct {
	Kind       string        `mapstructure:"kind" yaml:"kind" json:"kind"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	ResultPath string        `mapstructure:"result_path" yaml:"result_path" json:"result_path"`
	Language   string        `mapstructure:"language" yaml:"language" json:"language"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Eager      bool          `mapstructure:"eager" yaml:"eager" json:"eager"`
	Debug      bool          `mapstructure:"debug" yaml:"debug" json:"debug"`
}

// AnalysisConfig selects the analysis backend. An empty Model selects the
// provider's default.
type AnalysisConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider" json:"provider"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Model       string        `mapstructure:"model" yaml:"model" json:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens   int64         `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" json:"request_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers  int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Format   string   `mapstructure:"format" yaml:"format" json:"format"`
	Include  []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude  []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	FailFast bool     `mapstructure:"fail_fast" yaml:"fail_fast" json:"fail_fast"`
}
