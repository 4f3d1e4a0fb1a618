// Package pipeline drives one label image through admission, normalization,
// recognition, result normalization and analysis.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/admission"
	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/imageprep"
	"github.com/MeKo-Tech/labelscan/internal/ocrresult"
)

// Stage is a state a request passes through, in order.
type Stage string

const (
	StageAdmitted     Stage = "admitted"
	StagePreprocessed Stage = "preprocessed"
	StageRecognized   Stage = "recognized"
	StageNormalized   Stage = "normalized"
	StageAnalyzed     Stage = "analyzed"
	StageResponded    Stage = "responded"
)

// Stages lists every stage in transition order.
var Stages = []Stage{
	StageAdmitted, StagePreprocessed, StageRecognized,
	StageNormalized, StageAnalyzed, StageResponded,
}

// Observer is notified after each stage completes with the time spent in it.
type Observer func(stage Stage, elapsed time.Duration)

// Recognizer returns raw engine output for a normalized image.
type Recognizer interface {
	Recognize(ctx context.Context, img *imageprep.NormalizedImage) (any, error)
}

// Analyzer interprets a transcript. It never fails; failures are labeled
// outcomes.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) analysis.Outcome
}

// Config holds limits applied to every request.
type Config struct {
	MaxUploadBytes int64
	Image          imageprep.Options
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes: admission.DefaultMaxBytes,
		Image:          imageprep.DefaultOptions(),
	}
}

// Meta describes the processed image.
type Meta struct {
	MIME      string `json:"mime"`
	RequestID string `json:"request_id,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Response is the payload returned for a processed image.
type Response struct {
	OCR  *ocrresult.OCRResult `json:"ocr"`
	LLM  analysis.Outcome     `json:"llm"`
	Meta Meta                 `json:"meta"`
}

// Request is one image to process.
type Request struct {
	Data      []byte
	RequestID string
	Observer  Observer
}

// Orchestrator runs requests. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	cfg        Config
	recognizer Recognizer
	analyzer   Analyzer
	logger     *slog.Logger
	observer   Observer
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets an observer notified for every request, before any
// per-request observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// New returns an orchestrator.
func New(cfg Config, rec Recognizer, an Analyzer, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg, recognizer: rec, analyzer: an, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the orchestrator's limits.
func (o *Orchestrator) Config() Config { return o.cfg }

// Process runs req to completion. Oversized, unsupported, undecodable and
// unrecognizable images fail with *Error; analysis problems never fail the
// request.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	mark := start
	advance := func(s Stage) {
		now := time.Now()
		elapsed := now.Sub(mark)
		mark = now
		if o.observer != nil {
			o.observer(s, elapsed)
		}
		if req.Observer != nil {
			req.Observer(s, elapsed)
		}
	}
	log := o.logger
	if req.RequestID != "" {
		log = log.With("request_id", req.RequestID)
	}

	blob, err := admission.Admit(req.Data, o.cfg.MaxUploadBytes)
	if err != nil {
		return nil, &Error{Kind: admissionKind(err), Stage: StageAdmitted, Err: err}
	}
	advance(StageAdmitted)

	img, err := imageprep.Normalize(blob.Data, o.cfg.Image)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Stage: StagePreprocessed, Err: err}
	}
	advance(StagePreprocessed)

	raw, err := o.recognizer.Recognize(ctx, img)
	if err != nil {
		kind := KindRecognition
		if ctx.Err() != nil {
			kind = KindCanceled
		}
		return nil, &Error{Kind: kind, Stage: StageRecognized, Err: fmt.Errorf("recognize: %w", err)}
	}
	advance(StageRecognized)

	ocr := ocrresult.Normalize(raw)
	advance(StageNormalized)

	outcome := o.analyzer.Analyze(ctx, ocr.FullText())
	advance(StageAnalyzed)

	resp := &Response{
		OCR: ocr,
		LLM: outcome,
		Meta: Meta{
			MIME:      string(blob.MIME),
			RequestID: req.RequestID,
			Width:     img.Width(),
			Height:    img.Height(),
		},
	}
	advance(StageResponded)

	log.Info("label processed",
		"mime", blob.MIME,
		"width", img.Width(),
		"height", img.Height(),
		"lines", ocr.Len(),
		"analysis_ok", outcome.OK(),
		"analysis_reason", string(outcome.Reason),
		"duration", time.Since(start))
	return resp, nil
}
