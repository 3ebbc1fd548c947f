// Package api exposes learning path sessions and practice scoring over a
// JSON HTTP API.
package api

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/p-n-ai/interview-coach/internal/curriculum"
	"github.com/p-n-ai/interview-coach/internal/notify"
	"github.com/p-n-ai/interview-coach/internal/platform/metrics"
	"github.com/p-n-ai/interview-coach/internal/session"
)

const readyTimeout = 2 * time.Second

// QuestionBank picks practice questions.
type QuestionBank interface {
	RandomQuestion(d curriculum.Domain) (string, bool)
}

// HealthCheck reports whether a backend is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds the dependencies of the HTTP API.
type Config struct {
	Manager *session.Manager
	Bank    QuestionBank
	Scorer  session.Scorer // practice evaluation
	Hub     *notify.Hub    // optional; without it /ws answers 404
	Metrics *metrics.Metrics
	// Checks are run by /readyz, keyed by backend name.
	Checks map[string]HealthCheck
	Now    func() time.Time
}

// Server routes API requests.
type Server struct {
	cfg Config
	mux *http.ServeMux
}

// NewServer creates a Server with every route registered.
func NewServer(cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.cfg.Metrics != nil {
		s.mux.Handle("GET /metrics", s.cfg.Metrics.Handler())
	}

	s.mux.HandleFunc("GET /catalog", s.handleCatalog)

	s.mux.HandleFunc("POST /sessions", s.handleStartSession)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleEndSession)
	s.mux.HandleFunc("GET /sessions/{id}/overview", s.handleOverview)
	s.mux.HandleFunc("GET /sessions/{id}/levels/{level}/next", s.handleNextQuestion)
	s.mux.HandleFunc("POST /sessions/{id}/scores", s.handleRecordScore)
	s.mux.HandleFunc("POST /sessions/{id}/answers", s.handleSubmitAnswer)
	s.mux.HandleFunc("GET /sessions/{id}/report.xlsx", s.handleReport)
	s.mux.HandleFunc("GET /sessions/{id}/ws", s.handleWS)

	s.mux.HandleFunc("GET /practice/{domain}/question", s.handlePracticeQuestion)
	s.mux.HandleFunc("POST /practice/{domain}/evaluate", s.handlePracticeEvaluate)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	s.mux.ServeHTTP(rec, r)

	// The mux fills in r.Pattern once it has matched a route.
	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	elapsed := time.Since(start)
	s.cfg.Metrics.ObserveHTTP(r.Method, route, rec.status, elapsed)
	slog.Debug("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.cfg.Checks))
	status := http.StatusOK
	for name, check := range s.cfg.Checks {
		if err := check(ctx); err != nil {
			slog.Warn("readiness check failed", "backend", name, "error", err)
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"status": "ready", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	writeJSON(w, status, body)
}

// statusRecorder captures the response status for metrics. It passes
// Hijack through so WebSocket upgrades keep working.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	r.wroteHeader = true
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
