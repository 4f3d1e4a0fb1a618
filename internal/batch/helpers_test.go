package batch

import (
	"context"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/imageprep"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

type mockRecognizer struct {
	mu    sync.Mutex
	calls int
	// failWidth makes recognition fail for images of this width.
	failWidth int
}

func (m *mockRecognizer) Recognize(_ context.Context, img *imageprep.NormalizedImage) (any, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.failWidth > 0 && img.Width() == m.failWidth {
		return nil, errors.New("engine failed")
	}
	return testutil.PagesOutput(), nil
}

type mockAnalyzer struct{}

func (mockAnalyzer) Analyze(context.Context, string) analysis.Outcome {
	return analysis.Outcome{Result: &analysis.Analysis{
		DietaryCategory: analysis.DietVegan,
		OverallSummary:  "looks fine",
	}}
}

func newProcessor(rec *mockRecognizer) *pipeline.Orchestrator {
	return pipeline.New(pipeline.DefaultConfig(), rec, mockAnalyzer{}, pipeline.WithLogger(quietLogger()))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFiles creates files relative to dir. Names ending in .png get a real
// PNG whose width is 10 plus the index; other names get text.
func writeFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for i, name := range names {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		data := []byte("not an image")
		if strings.HasSuffix(name, ".png") {
			data = testutil.EncodePNG(t, testutil.BlankImage(10+i, 10, color.White))
		}
		require.NoError(t, os.WriteFile(p, data, 0o600))
		paths = append(paths, p)
	}
	return paths
}
