package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/MeKo-Tech/labelscan/internal/admission"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

// Processor runs one label image through the pipeline.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// EngineStatus reports the recognition engine's readiness for /health.
type EngineStatus interface {
	EngineName() string
	Ready() bool
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	processor Processor
	cfg       Config
	engine    EngineStatus
	analysis  bool
	version   string
	logger    *slog.Logger
	cors      *cors.Cors
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigins     []string
	MaxUploadBytes  int64
	RequestTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8000,
		CORSOrigins:     []string{"*"},
		MaxUploadBytes:  admission.DefaultMaxBytes,
		RequestTimeout:  3 * time.Minute,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    4 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngineStatus exposes engine readiness on /health.
func WithEngineStatus(e EngineStatus) Option {
	return func(s *Server) { s.engine = e }
}

// WithAnalysisConfigured reports on /health whether a backend credential is set.
func WithAnalysisConfigured(ok bool) Option {
	return func(s *Server) { s.analysis = ok }
}

// WithVersion sets the version reported on /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version,omitempty"`
	Time               string `json:"time"`
	Engine             string `json:"engine,omitempty"`
	EngineReady        bool   `json:"engine_ready"`
	AnalysisConfigured bool   `json:"analysis_configured"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// NewServer creates a server around an orchestrator.
func NewServer(cfg Config, proc Processor, opts ...Option) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = admission.DefaultMaxBytes
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	s := &Server{processor: proc, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.cors = cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         86400,
	})
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/{$}", s.indexHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/analyze", s.analyzeHandler)
	mux.HandleFunc("/ws/analyze", s.analyzeWebSocketHandler)
	mux.Handle("/metrics", metricsHandler())
}

// Handler returns the routed handler wrapped in CORS, request ID, access
// logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return s.cors.Handler(s.requestIDMiddleware(s.loggingMiddleware(s.metricsMiddleware(mux))))
}
