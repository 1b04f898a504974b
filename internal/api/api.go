// Package api exposes the analysis service over HTTP.
//
// Routes:
//
//	GET  /api/v1/            service information
//	GET  /api/v1/health      static health document
//	POST /api/v1/transcribe  multipart audio upload, full analysis
//	POST /api/v1/analyze     JSON transcript, analysis without transcription
//
// Every error response is a JSON object {"detail": "..."}.
package api

import (
	"context"
	"net/http"

	"github.com/CoachAI26/ai/internal/analysis"
	"github.com/CoachAI26/ai/internal/challenge"
	"github.com/CoachAI26/ai/internal/observe"
	"github.com/CoachAI26/ai/pkg/provider/stt"
)

// Version is reported by the service information endpoint.
const Version = "1.0.0"

// DefaultMaxUploadBytes caps an upload when no limit is configured.
const DefaultMaxUploadBytes = 25 << 20

// Analyzer is the subset of [analysis.Service] the handlers call.
type Analyzer interface {
	Analyze(ctx context.Context, in analysis.Input) (*analysis.Report, error)
	AnalyzeAudio(ctx context.Context, req stt.Request, topic challenge.Topic) (*analysis.Report, error)
}

// Server holds the handler dependencies.
type Server struct {
	svc            Analyzer
	metrics        *observe.Metrics
	maxUploadBytes int64
	limiter        *ClientLimiter
	extra          []func(*http.ServeMux)
}

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMaxUploadBytes caps request bodies. Values ≤ 0 select
// [DefaultMaxUploadBytes].
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLimiter throttles the /api/v1 routes per client.
func WithLimiter(l *ClientLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithRoutes registers additional routes (health probes, /metrics) on the
// same mux. They bypass the client limiter.
func WithRoutes(register func(*http.ServeMux)) Option {
	return func(s *Server) { s.extra = append(s.extra, register) }
}

// New creates a Server backed by svc.
func New(svc Analyzer, opts ...Option) *Server {
	s := &Server{svc: svc, maxUploadBytes: DefaultMaxUploadBytes}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the complete HTTP handler with tracing, metrics, CORS and
// the optional client limiter applied.
func (s *Server) Handler() http.Handler {
	v1 := http.NewServeMux()
	v1.HandleFunc("GET /api/v1/{$}", s.handleRoot)
	v1.HandleFunc("GET /api/v1/health", s.handleHealth)
	v1.HandleFunc("POST /api/v1/transcribe", s.handleTranscribe)
	v1.HandleFunc("POST /api/v1/analyze", s.handleAnalyze)

	var api http.Handler = v1
	if s.limiter != nil {
		api = s.limiter.Middleware(api)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", api)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	for _, register := range s.extra {
		register(mux)
	}

	return observe.Middleware(s.metrics)(cors(mux))
}

// cors answers preflight requests and allows every origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Traceparent")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
