package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"TaskAgent/backend/go/internal/config"
	"TaskAgent/backend/go/pkg/circuitbreaker"
	"TaskAgent/backend/go/pkg/httpmiddleware"
	"TaskAgent/backend/go/pkg/logger"
	"TaskAgent/backend/go/pkg/ratelimiter"
)

// Middleware defines a function to wrap an http.Handler.
type Middleware func(http.Handler) http.Handler

// Server wraps http.Server with the rate limiting and circuit breaking
// middleware selected in the config.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	log        *logger.Logger
}

// ServerOption defines a function for configuring a Server.
type ServerOption func(*Server)

// WithAddress sets the address for the server to listen on.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithLogger replaces the server logger.
func WithLogger(l *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a Server. Rate limiting runs before circuit breaking so
// rejected requests never count against the breaker.
func NewServer(cfg *config.AppConfig, opts ...ServerOption) (*Server, error) {
	mux := http.NewServeMux()
	srv := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Address,
			ReadHeaderTimeout: 10 * time.Second,
		},
		mux: mux,
		log: logger.New("http_server", "", cfg.Agent.SourceID),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = "127.0.0.1:8080"
	}

	var middlewares []Middleware
	if cfg.Middleware.RateLimiter.Enabled {
		limiter, err := createRateLimiter(cfg.Middleware.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.log.WithPayload(map[string]interface{}{"algorithm": cfg.Middleware.RateLimiter.Algorithm}).Info("Enabling rate limiter middleware")
		middlewares = append(middlewares, httpmiddleware.RateLimit(limiter))
	}
	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := createCircuitBreaker(cfg.Middleware.CircuitBreaker)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.log.Info("Enabling circuit breaker middleware")
		middlewares = append(middlewares, httpmiddleware.CircuitBreak(breaker))
	}

	var handler http.Handler = mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	srv.httpServer.Handler = handler
	return srv, nil
}

// Handle registers the handler for the given pattern.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// HandleFunc registers the handler function for the given pattern.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// ListenAndServe starts the HTTP server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.WithPayload(map[string]interface{}{"address": s.httpServer.Addr}).Info("Starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func createRateLimiter(cfg config.RateLimiterConfig) (ratelimiter.RateLimiter, error) {
	switch cfg.Algorithm {
	case "", "tokenBucket":
		conf := cfg.TokenBucket
		if conf.Rate <= 0 || conf.Capacity <= 0 {
			return nil, fmt.Errorf("tokenBucket rate and capacity must be positive")
		}
		return ratelimiter.NewTokenBucket(conf.Rate, conf.Capacity), nil
	case "slidingLog":
		conf := cfg.SlidingLog
		window, err := time.ParseDuration(conf.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid slidingLog duration: %w", err)
		}
		return ratelimiter.NewSlidingWindowLog(conf.Limit, window), nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %s", cfg.Algorithm)
	}
}

func createCircuitBreaker(cfg config.CircuitBreakerConfig) (circuitbreaker.CircuitBreaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	return circuitbreaker.New(cfg.FailureThreshold, cfg.SuccessThreshold, timeout), nil
}
