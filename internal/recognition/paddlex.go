package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/MeKo-Tech/labelscan/internal/imageprep"
)

// DefaultResultPath selects the per-page pruned results of a PaddleX OCR
// pipeline reply.
const DefaultResultPath = "result.ocrResults.#.prunedResult"

// maxReplyBytes bounds how much of an engine reply is read.
const maxReplyBytes = 64 << 20

// PaddleXEngine calls a PaddleX/PaddleOCR serving endpoint over HTTP.
type PaddleXEngine struct {
	client     *http.Client
	endpoint   string
	resultPath string
	language   string
}

// paddleXRequest disables the document-level sub-stages: orientation
// classification, unwarping and per-line orientation.
type paddleXRequest struct {
	File                      string `json:"file"`
	FileType                  int    `json:"fileType"`
	UseDocOrientationClassify bool   `json:"useDocOrientationClassify"`
	UseDocUnwarping           bool   `json:"useDocUnwarping"`
	UseTextlineOrientation    bool   `json:"useTextlineOrientation"`
	Lang                      string `json:"lang,omitempty"`
}

// NewPaddleXEngine validates cfg and returns an engine. No request is made.
func NewPaddleXEngine(cfg Config) (*PaddleXEngine, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("paddlex endpoint is required")
	}
	path := cfg.ResultPath
	if path == "" {
		path = DefaultResultPath
	}
	return &PaddleXEngine{
		client:     &http.Client{},
		endpoint:   cfg.Endpoint,
		resultPath: path,
		language:   cfg.Language,
	}, nil
}

// Name implements Engine.
func (e *PaddleXEngine) Name() string { return KindPaddleX }

// Close implements Engine.
func (e *PaddleXEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// Predict posts the PNG-encoded image and returns the value found at the
// configured result path, decoded with numbers kept as json.Number.
func (e *PaddleXEngine) Predict(ctx context.Context, img *imageprep.NormalizedImage) (any, error) {
	pngData, err := img.EncodePNG()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(paddleXRequest{
		File:     base64.StdEncoding.EncodeToString(pngData),
		FileType: 1,
		Lang:     e.language,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call engine: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(reply, "errorMsg").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("engine returned status %d: %s", resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(reply) {
		return nil, errors.New("engine reply is not valid JSON")
	}
	if code := gjson.GetBytes(reply, "errorCode"); code.Exists() && code.Int() != 0 {
		return nil, fmt.Errorf("engine error %d: %s", code.Int(), gjson.GetBytes(reply, "errorMsg").String())
	}

	result := gjson.GetBytes(reply, e.resultPath)
	if !result.Exists() {
		return nil, fmt.Errorf("engine reply has no value at %q", e.resultPath)
	}
	return decodeNumbers(result.Raw)
}

func decodeNumbers(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return v, nil
}
