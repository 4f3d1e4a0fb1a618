//go:build tesseract

package recognition

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/labelscan/internal/imageprep"
)

// tesseractEngine runs libtesseract in-process. A client is created per call
// because gosseract clients are not safe for concurrent use.
type tesseractEngine struct {
	languages []string
}

func newTesseractEngine(cfg Config) (Engine, error) {
	langs := TesseractLanguages(cfg.Language)
	probe := gosseract.NewClient()
	defer func() { _ = probe.Close() }()
	if err := probe.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("set languages %s: %w", strings.Join(langs, "+"), err)
	}
	return &tesseractEngine{languages: langs}, nil
}

func (e *tesseractEngine) Name() string { return KindTesseract }

func (e *tesseractEngine) Close() error { return nil }

// Predict emits a single page in the pages layout at text-line granularity,
// with scores scaled to [0,1].
func (e *tesseractEngine) Predict(ctx context.Context, img *imageprep.NormalizedImage) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := img.EncodePNG()
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()
	if err := client.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}

	texts := make([]string, 0, len(boxes))
	scores := make([]float64, 0, len(boxes))
	rects := make([][4]int, 0, len(boxes))
	for _, b := range boxes {
		texts = append(texts, b.Word)
		scores = append(scores, b.Confidence/100.0)
		rects = append(rects, [4]int{b.Box.Min.X, b.Box.Min.Y, b.Box.Max.X, b.Box.Max.Y})
	}
	return []any{map[string]any{
		"rec_texts":  texts,
		"rec_scores": scores,
		"rec_boxes":  rects,
	}}, nil
}
