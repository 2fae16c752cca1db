package httpmiddleware

import (
	"errors"
	"fmt"
	"net/http"

	"TaskAgent/backend/go/pkg/circuitbreaker"
	"TaskAgent/backend/go/pkg/ratelimiter"
)

// RateLimit rejects requests with 429 once limiter denies them.
func RateLimit(limiter ratelimiter.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures the status code written by the next handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// CircuitBreak counts responses with status >= 500 as failures and answers
// 503 while the circuit is open.
func CircuitBreak(breaker circuitbreaker.CircuitBreaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			err := breaker.Execute(func() error {
				next.ServeHTTP(rw, r)
				if rw.statusCode >= http.StatusInternalServerError {
					return fmt.Errorf("server error: status code %d", rw.statusCode)
				}
				return nil
			})
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				http.Error(w, "Service Unavailable: Circuit Breaker is open", http.StatusServiceUnavailable)
			}
		})
	}
}
