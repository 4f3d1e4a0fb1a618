// Package recognition owns the text recognition engine and invokes it once
// per request. Engine output is returned untyped; interpreting it is the job
// of package ocrresult.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/imageprep"
)

// Engine kinds.
const (
	KindPaddleX   = "paddlex"
	KindTesseract = "tesseract"
)

var (
	// ErrNoBackend is returned when an engine kind is not linked into the binary.
	ErrNoBackend = errors.New("recognition: engine backend not linked; build with -tags=tesseract")
	// ErrUnknownEngine is returned for an unsupported engine kind.
	ErrUnknownEngine = errors.New("recognition: unknown engine kind")
)

// Engine is a text detection and recognition engine. Predict returns the
// engine's native output without interpretation.
type Engine interface {
	Predict(ctx context.Context, img *imageprep.NormalizedImage) (any, error)
	Name() string
	Close() error
}

// Error reports a failed engine operation.
type Error struct {
	Op     string // "init" or "predict"
	Engine string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recognition %s failed (%s): %v", e.Op, e.Engine, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config selects and configures the engine.
type Config struct {
	Kind       string        // paddlex or tesseract
	Endpoint   string        // paddlex serving URL
	ResultPath string        // gjson path to the raw output in a paddlex reply
	Language   string        // language mode, e.g. "ch", "en", "japan"
	Timeout    time.Duration // per-invocation bound; zero disables
	Debug      bool          // log the raw output's shape
}

// DefaultConfig returns defaults for a local PaddleX serving endpoint.
func DefaultConfig() Config {
	return Config{
		Kind:       KindPaddleX,
		Endpoint:   "http://localhost:8080/ocr",
		ResultPath: DefaultResultPath,
		Language:   "ch",
		Timeout:    60 * time.Second,
	}
}

// NewEngine constructs the engine selected by cfg.Kind.
func NewEngine(_ context.Context, cfg Config) (Engine, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindPaddleX:
		return NewPaddleXEngine(cfg)
	case KindTesseract:
		return newTesseractEngine(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Kind)
	}
}

// tesseractLanguages maps language modes to traineddata names.
var tesseractLanguages = map[string][]string{
	"ch":          {"chi_sim", "eng"},
	"chinese_cht": {"chi_tra", "eng"},
	"en":          {"eng"},
	"japan":       {"jpn", "eng"},
	"korean":      {"kor", "eng"},
}

// TesseractLanguages returns the traineddata names for a language mode.
// Unknown modes are passed through as a single traineddata name.
func TesseractLanguages(mode string) []string {
	if mode == "" {
		mode = "ch"
	}
	if langs, ok := tesseractLanguages[strings.ToLower(mode)]; ok {
		return langs
	}
	return []string{mode}
}
