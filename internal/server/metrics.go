package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Label processing metrics
	analyzeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_analyze_requests_total",
			Help: "Total number of label analysis requests",
		},
		[]string{"transport", "status"}, // transport: http, websocket; status: success or an error kind
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelscan_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	analysisOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_analysis_outcomes_total",
			Help: "Analysis outcomes by reason (ok for a structured result)",
		},
		[]string{"reason"},
	)

	ocrTextLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labelscan_ocr_text_length",
			Help:    "Length of the recognized transcript in bytes",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	ocrLinesRecognized = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labelscan_ocr_lines",
			Help:    "Number of recognized text lines",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "labelscan_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{10 * 1024, 100 * 1024, 512 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labelscan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

func metricsHandler() http.Handler { return promhttp.Handler() }

func observeStage(stage pipeline.Stage, elapsed time.Duration) {
	stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

func recordResult(transport string, resp *pipeline.Response, err error) {
	if err != nil {
		kind := string(pipeline.KindOf(err))
		if kind == "" {
			kind = "error"
		}
		analyzeRequestsTotal.WithLabelValues(transport, kind).Inc()
		return
	}
	analyzeRequestsTotal.WithLabelValues(transport, "success").Inc()
	ocrTextLength.Observe(float64(len(resp.OCR.FullText())))
	ocrLinesRecognized.Observe(float64(resp.OCR.Len()))
	reason := string(resp.LLM.Reason)
	if reason == "" {
		reason = "ok"
	}
	analysisOutcomes.WithLabelValues(reason).Inc()
}
