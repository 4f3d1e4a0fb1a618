package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "labelscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "LABELSCAN"
)

// legacyEnv maps configuration keys to the variable names older deployments
// set without the prefix.
var legacyEnv = map[string]string{
	"analysis.api_key":       "OPENAI_API_KEY",
	"analysis.base_url":      "OPENAI_BASE_URL",
	"analysis.model":         "OPENAI_MODEL",
	"engine.language":        "OCR_LANG",
	"engine.debug":           "OCR_DEBUG",
	"image.max_upload_bytes": "MAX_UPLOAD_BYTES",
}

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader over the global viper instance, so flags bound by
// the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader over v.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment, overriding values already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Overload(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load resolves and validates the configuration. An empty configFile searches
// the standard locations; a missing file there is not an error.
func (l *Loader) Load(configFile string) (*Config, error) {
	cfg, err := l.LoadWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation resolves the configuration without validating it.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			l.v.AddConfigPath(p)
		}
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path of the config file read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Viper returns the underlying viper instance.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = l.v.BindEnv(key, prefixed, legacy)
	}
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("log_format", d.LogFormat)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("image.max_upload_bytes", d.Image.MaxUploadBytes)
	l.v.SetDefault("image.max_side", d.Image.MaxSide)

	l.v.SetDefault("engine.kind", d.Engine.Kind)
	l.v.SetDefault("engine.endpoint", d.Engine.Endpoint)
	l.v.SetDefault("engine.result_path", d.Engine.ResultPath)
	l.v.SetDefault("engine.language", d.Engine.Language)
	l.v.SetDefault("engine.timeout", d.Engine.Timeout)
	l.v.SetDefault("engine.eager", d.Engine.Eager)
	l.v.SetDefault("engine.debug", d.Engine.Debug)

	l.v.SetDefault("analysis.provider", d.Analysis.Provider)
	l.v.SetDefault("analysis.api_key", d.Analysis.APIKey)
	l.v.SetDefault("analysis.base_url", d.Analysis.BaseURL)
	l.v.SetDefault("analysis.model", d.Analysis.Model)
	l.v.SetDefault("analysis.temperature", d.Analysis.Temperature)
	l.v.SetDefault("analysis.max_tokens", d.Analysis.MaxTokens)
	l.v.SetDefault("analysis.timeout", d.Analysis.Timeout)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	l.v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	l.v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	l.v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.format", d.Batch.Format)
	l.v.SetDefault("batch.include", d.Batch.Include)
	l.v.SetDefault("batch.exclude", d.Batch.Exclude)
	l.v.SetDefault("batch.fail_fast", d.Batch.FailFast)
}

// ToYAML renders cfg as YAML with the credential redacted.
func ToYAML(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg.Redacted())
}

// WriteDefaultConfigFile writes the default configuration as YAML. It refuses
// to overwrite an existing file unless force is set.
func WriteDefaultConfigFile(filename string, force bool) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	if !force {
		if _, err := os.Stat(filename); err == nil {
			return fmt.Errorf("config file already exists: %s", filename)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}

// SearchPaths returns the directories searched for labelscan.yaml, in order.
func SearchPaths() []string {
	paths := []string{"."}
	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	return append(paths, "/etc/"+ConfigFileName)
}
