package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

// multipartOverhead is the allowance for multipart framing on top of the
// image ceiling. Anything larger than ceiling+overhead is cut off early.
const multipartOverhead = 64 * 1024

const indexPage = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>labelscan</title>
</head>
<body>
  <h2>食品成分 OCR 分析</h2>
  <form action="/analyze" method="post" enctype="multipart/form-data">
    <input type="file" name="image" accept="image/jpeg,image/png,image/webp" required />
    <button type="submit">上傳並分析</button>
  </form>
  <p>API: POST /analyze (multipart field: image), WebSocket: /ws/analyze</p>
</body>
</html>`

// indexHandler serves a minimal upload form.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexPage)
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:             "ok",
		Version:            s.version,
		Time:               time.Now().UTC().Format(time.RFC3339),
		AnalysisConfigured: s.analysis,
	}
	if s.engine != nil {
		response.Engine = s.engine.EngineName()
		response.EngineReady = s.engine.Ready()
	}

	s.writeJSON(w, http.StatusOK, response)
}

// analyzeHandler processes POST /analyze with the image in multipart field
// "image".
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			recordResult("http", nil, &pipeline.Error{Kind: pipeline.KindTooLarge, Stage: pipeline.StageAdmitted, Err: err})
			s.writeErrorResponse(w, "檔案太大", http.StatusRequestEntityTooLarge, pipeline.KindTooLarge)
			return
		}
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest, "")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest, "")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError, "")
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := s.processor.Process(ctx, pipeline.Request{
		Data:      data,
		RequestID: RequestID(r.Context()),
		Observer:  observeStage,
	})
	recordResult("http", resp, err)
	if err != nil {
		status, msg := errorStatus(err)
		s.logger.Warn("analyze failed",
			"request_id", RequestID(r.Context()),
			"kind", pipeline.KindOf(err),
			"error", err)
		s.writeErrorResponse(w, msg, status, pipeline.KindOf(err))
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// errorStatus maps a pipeline failure to an HTTP status and client message.
func errorStatus(err error) (int, string) {
	switch pipeline.KindOf(err) {
	case pipeline.KindTooLarge:
		return http.StatusRequestEntityTooLarge, "檔案太大"
	case pipeline.KindUnsupportedType:
		return http.StatusUnsupportedMediaType, "只接受 jpg/png/webp"
	case pipeline.KindDecode:
		return http.StatusInternalServerError, "Failed to decode image"
	case pipeline.KindRecognition:
		return http.StatusInternalServerError, fmt.Sprintf("OCR processing failed: %v", errors.Unwrap(err))
	case pipeline.KindCanceled:
		return http.StatusServiceUnavailable, "Request canceled or timed out"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int, kind pipeline.Kind) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Success: false,
		Error:   message,
		Kind:    string(kind),
	})
}
