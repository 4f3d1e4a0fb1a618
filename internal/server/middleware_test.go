package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_RequestIDMiddleware(t *testing.T) {
	server := newTestServer(t, DefaultConfig(), nil)

	var seen string
	h := server.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	t.Run("propagates client ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	})

	t.Run("generates when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(requestIDHeader))
	})

	t.Run("replaces oversized ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, strings.Repeat("x", 200))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Len(t, seen, 36)
	})
}

func TestRequestID_EmptyContext(t *testing.T) {
	assert.Empty(t, RequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}

func TestServer_CORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantHeader string
	}{
		{"wildcard", []string{"*"}, "https://example.com", "*"},
		{"listed origin", []string{"https://a.example", "https://b.example"}, "https://b.example", "https://b.example"},
		{"unlisted origin", []string{"https://a.example"}, "https://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CORSOrigins = tt.origins
			h := newTestServer(t, cfg, nil).Handler()

			req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Less(t, w.Code, 300)
			assert.Equal(t, tt.wantHeader, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestServer_CORS_SimpleRequest(t *testing.T) {
	h := newTestServer(t, DefaultConfig(), nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrap(rec)
	assert.Same(t, rw, wrap(rw))

	rw.WriteHeader(http.StatusAccepted)
	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusAccepted, rw.statusCode)
	assert.Equal(t, int64(5), rw.written)
	assert.Equal(t, rec, rw.Unwrap())

	_, _, err = rw.Hijack()
	assert.Error(t, err, "recorder cannot be hijacked")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	h := newTestServer(t, DefaultConfig(), nil).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, multipartRequest(t, "image", "a.png", pngBytes(t, 10, 10)))
	require.Equal(t, http.StatusOK, w.Code)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "labelscan_http_requests_total")
	assert.Contains(t, text, `endpoint="/analyze"`)
	assert.Contains(t, text, `labelscan_analyze_requests_total{status="success",transport="http"}`)
	assert.Contains(t, text, `labelscan_stage_duration_seconds_count{stage="recognized"}`)
	assert.Contains(t, text, `labelscan_analysis_outcomes_total{reason="missing_credential"}`)
}
