// Package api implements AXIOM's HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Brent1981/AIProject/internal/buildinfo"
	"github.com/Brent1981/AIProject/internal/connwatch"
	"github.com/Brent1981/AIProject/internal/filesorter"
	"github.com/Brent1981/AIProject/internal/homeassistant"
	"github.com/Brent1981/AIProject/internal/metrics"
	"github.com/Brent1981/AIProject/internal/orchestrator"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Prompter runs prompts through the pipeline.
type Prompter interface {
	Process(ctx context.Context, prompt, model string) string
}

// Rememberer stores memories.
type Rememberer interface {
	Remember(ctx context.Context, text string) string
}

// HomeAssistant is the read side used by the history and temperature
// endpoints.
type HomeAssistant interface {
	Configured() bool
	GetStates(ctx context.Context) ([]homeassistant.State, error)
	GetHistory(ctx context.Context, entityID string, since time.Time) ([]homeassistant.State, error)
	TimeZone(ctx context.Context) *time.Location
}

// FileProcessor sorts one file.
type FileProcessor interface {
	Process(ctx context.Context, path string) (*filesorter.Result, error)
}

// StatusSource reports backend health.
type StatusSource interface {
	Status() []connwatch.Status
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	prompter Prompter
	session  *orchestrator.Session
	memory   Rememberer
	ha       HomeAssistant
	files    FileProcessor
	status   StatusSource
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, prompter Prompter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		port:     port,
		prompter: prompter,
		logger:   logger.With("component", "api"),
	}
}

// SetSession enables GET /api/conversation.
func (s *Server) SetSession(sess *orchestrator.Session) { s.session = sess }

// SetMemory enables POST /api/memory.
func (s *Server) SetMemory(m Rememberer) { s.memory = m }

// SetHomeAssistant enables the history and temperature endpoints.
func (s *Server) SetHomeAssistant(ha HomeAssistant) { s.ha = ha }

// SetFileSorter enables POST /api/files/process.
func (s *Server) SetFileSorter(fp FileProcessor) { s.files = fp }

// SetStatusSource enables GET /api/status.
func (s *Server) SetStatusSource(src StatusSource) { s.status = src }

// SetMetrics enables GET /metrics.
func (s *Server) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetRateLimit bounds prompt requests per second. Zero disables limiting.
func (s *Server) SetRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		s.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Handler returns the routed handler with access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/prompt", s.withRateLimit(http.HandlerFunc(s.handlePrompt)))
	mux.HandleFunc("POST /api/memory", s.handleRemember)
	mux.HandleFunc("GET /api/conversation", s.handleConversation)
	mux.HandleFunc("GET /api/history/{entity_id}", s.handleEntityHistory)
	mux.HandleFunc("GET /api/temperature", s.handleTemperature)
	mux.HandleFunc("POST /api/files/process", s.handleProcessFile)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.withLogging(mux)
}

// Start begins serving HTTP requests and blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // a cycle can chain several 60s model calls
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		level := slog.LevelInfo
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.errorResponse(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]string{"error": message}, s.logger)
}

func (s *Server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, v, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, buildinfo.Info())
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Uptime   string             `json:"uptime"`
	Services []connwatch.Status `json:"services"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Uptime: buildinfo.Uptime().String(), Services: []connwatch.Status{}}
	if s.status != nil {
		resp.Services = s.status.Status()
	}
	s.respond(w, resp)
}
