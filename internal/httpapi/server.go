// Package httpapi exposes the viva orchestrator over HTTP: session start,
// answer evaluation, and report retrieval, with per-IP rate limiting.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivasim/vivasim/pkg/viva"
)

// ServerOptions configures the HTTP server
type ServerOptions struct {
	Host               string
	Port               int
	RateLimitPerMinute int
}

// Server serves the viva HTTP API
type Server struct {
	options        ServerOptions
	server         *http.Server
	orchestrator   *viva.Orchestrator
	store          *viva.Store
	rateLimiter    *RateLimiter
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new API server
func NewServer(options ServerOptions, orchestrator *viva.Orchestrator, store *viva.Store, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 5000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 100
	}

	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	return &Server{
		options:      options,
		orchestrator: orchestrator,
		store:        store,
		rateLimiter:  NewRateLimiter(options.RateLimitPerMinute),
		logger:       logger,
		startTime:    time.Now(),
	}, nil
}

// Start starts the API server and blocks until it stops
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/viva/start", s.guard(s.handleStart))
	mux.HandleFunc("/api/viva/respond", s.guard(s.handleRespond))
	mux.HandleFunc("/api/viva/session/", s.guard(s.handleSession))

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: withCORS(s.withRequestLog(mux)),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting viva API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down API server")

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}

// guard wraps an API handler with shutdown checks, in-flight tracking, and
// rate limiting.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		ip := getClientIP(r)
		if !s.rateLimiter.CheckLimit(ip) {
			retryAfter := s.rateLimiter.GetRetryAfter(ip)
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retryAfter", retryAfter).
				Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next(w, r)
	}
}
