package batch

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Output formats.
const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
	FormatText  = "text"
)

// DefaultIncludePatterns matches the image extensions admission accepts.
var DefaultIncludePatterns = []string{"*.{jpg,jpeg,png,webp,JPG,JPEG,PNG,WEBP}"}

// Config holds all configuration for batch processing.
type Config struct {
	// Parallel processing settings
	Workers  int
	FailFast bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output settings
	Format     string
	OutputFile string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:          runtime.NumCPU(),
		IncludePatterns:  DefaultIncludePatterns,
		Format:           FormatJSONL,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	switch c.Format {
	case FormatJSONL, FormatJSON, FormatText:
	default:
		return fmt.Errorf("unsupported format %q (want jsonl, json or text)", c.Format)
	}
	if c.ProgressInterval < 0 {
		return errors.New("progress interval must not be negative")
	}
	return nil
}
