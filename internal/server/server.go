package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jonathan/syllabus-analyzer/internal/analysis"
	"github.com/jonathan/syllabus-analyzer/internal/observability"
	"github.com/jonathan/syllabus-analyzer/internal/server/middleware"
	"github.com/jonathan/syllabus-analyzer/internal/server/ratelimit"
	"github.com/jonathan/syllabus-analyzer/internal/session"
)

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	sessions    *sessionStore
	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
	closeOnce   sync.Once
}

// Config holds server configuration
type Config struct {
	Port int
	// Session timings and sample text applied to every new session.
	// An empty Sample falls back to the built-in sample syllabus.
	Session session.Config
	// SessionIdleTTL evicts sessions with no requests for this long. Zero means 30 minutes.
	SessionIdleTTL time.Duration
	// SessionSweepInterval is how often idle sessions are looked for. Zero means one minute.
	SessionSweepInterval time.Duration
	// RateLimit defaults to ratelimit.LoadConfig() when nil.
	RateLimit *ratelimit.Config
	Logger    *zap.Logger
}

// New creates a new server instance. runner performs the analysis for every session.
func New(cfg Config, runner session.Runner) *Server {
	logger := observability.OrNop(cfg.Logger)

	if cfg.Session.Sample == "" {
		cfg.Session.Sample = analysis.SampleSyllabus()
	}

	rlConfig := cfg.RateLimit
	if rlConfig == nil {
		rlConfig = ratelimit.LoadConfig()
	}

	s := &Server{
		sessions:    newSessionStore(runner, cfg.Session, cfg.SessionIdleTTL, logger),
		rateLimiter: ratelimit.NewLimiter(rlConfig),
		logger:      logger,
	}

	withSession := middleware.SessionMiddleware(s.sessions, func(w http.ResponseWriter, id string) {
		s.fail(w, &ErrSessionNotFound{ID: id})
	})
	scoped := func(h http.HandlerFunc) http.Handler {
		return withSession(h)
	}

	// Setup router
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /sample", s.handleSample)

	// Session endpoints
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.Handle("GET /sessions/{id}", scoped(s.handleGetSession))
	mux.Handle("PUT /sessions/{id}/input", scoped(s.handleSetInput))
	mux.Handle("POST /sessions/{id}/upload", scoped(s.handleUpload))
	mux.Handle("POST /sessions/{id}/sample", scoped(s.handleLoadSample))
	mux.Handle("POST /sessions/{id}/analyze", scoped(s.handleAnalyze))
	mux.Handle("POST /sessions/{id}/analyze/stream", scoped(s.handleAnalyzeStream))
	mux.Handle("POST /sessions/{id}/reset", scoped(s.handleReset))
	mux.Handle("GET /sessions/{id}/export", scoped(s.handleExport))

	s.sessions.startSweeper(cfg.SessionSweepInterval)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for analysis runs
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens for requests until ctx is cancelled or the process is
// interrupted, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.Close()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.Close()
	s.logger.Info("server stopped")
	return nil
}

// Close stops the session sweeper and the rate limiter cleanup without
// touching the listener. Safe to call twice.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.sessions.stopSweeper()
		s.rateLimiter.Stop()
	})
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract client identifier (IP address)
		clientID := s.extractClientID(r)

		// Check rate limit
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		// Set rate limit headers
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code for request logging. It passes
// Flush through so SSE responses keep streaming.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		observability.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail writes err with the status HTTPStatus assigns to it.
func (s *Server) fail(w http.ResponseWriter, err error) {
	s.errorResponse(w, HTTPStatus(err), err.Error())
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	// Get IP from RemoteAddr (format: "IP:port")
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If parsing fails, use the whole RemoteAddr
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"quota":     info.Quota,
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	observability.RateLimitedTotal.WithLabelValues(info.Quota).Inc()
	s.logger.Warn("rate limit exceeded",
		zap.String("quota", info.Quota),
		zap.Int("limit", info.Limit),
		zap.Int("remaining", info.Remaining),
		zap.Time("reset", info.ResetTime),
	)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
