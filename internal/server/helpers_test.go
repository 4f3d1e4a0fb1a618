package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/imageprep"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

// mockRecognizer returns canned raw output.
type mockRecognizer struct {
	raw   any
	err   error
	delay time.Duration
}

func (m *mockRecognizer) Recognize(context.Context, *imageprep.NormalizedImage) (any, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.raw, m.err
}

type mockAnalyzer struct {
	outcome analysis.Outcome
}

func (m *mockAnalyzer) Analyze(context.Context, string) analysis.Outcome {
	return m.outcome
}

type mockEngine struct {
	name  string
	ready bool
}

func (m mockEngine) EngineName() string { return m.name }
func (m mockEngine) Ready() bool        { return m.ready }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds a server over a real orchestrator with mocked
// recognition and analysis.
func newTestServer(t *testing.T, cfg Config, rec pipeline.Recognizer, opts ...Option) *Server {
	t.Helper()
	if rec == nil {
		rec = &mockRecognizer{raw: testutil.PagesOutput()}
	}
	pcfg := pipeline.DefaultConfig()
	if cfg.MaxUploadBytes > 0 {
		pcfg.MaxUploadBytes = cfg.MaxUploadBytes
	}
	an := &mockAnalyzer{outcome: analysis.Outcome{Reason: analysis.ReasonMissingCredential}}
	orch := pipeline.New(pcfg, rec, an, pipeline.WithLogger(quietLogger()))
	return NewServer(cfg, orch, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.BlankImage(w, h, color.White))
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.White, color.Black})
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

// multipartRequest builds a POST /analyze request with data in field.
func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
