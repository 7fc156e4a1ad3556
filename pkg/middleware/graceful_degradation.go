package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/vaidashi/phone-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// GracefulDegradation sheds non-essential requests while their 5xx rate keeps the breaker open
type GracefulDegradation struct {
	breaker           *circuitbreaker.CircuitBreaker
	essentialPrefixes []string
	logger            logger.Logger
}

// NewGracefulDegradation creates the middleware. Paths under essentialPrefixes are never shed.
func NewGracefulDegradation(essentialPrefixes []string, logger logger.Logger) *GracefulDegradation {
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		Name:             "http",
		FailureThreshold: 10,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 5,
	})

	return &GracefulDegradation{
		breaker:           breaker,
		essentialPrefixes: essentialPrefixes,
		logger:            logger,
	}
}

// Middleware returns a middleware function
func (gd *GracefulDegradation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gd.isEssential(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !gd.breaker.Allow() {
			gd.logger.Warn("Circuit is open, request rejected",
				"path", r.URL.Path,
				"method", r.Method,
				"state", gd.breaker.GetState().String())

			reject(w, http.StatusServiceUnavailable, "30", "Service is temporarily unavailable. Please try again later.")
			return
		}

		rec := NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		switch {
		case rec.StatusCode >= 500:
			gd.breaker.Failure()
		case rec.StatusCode < 400:
			gd.breaker.Success()
		}
	})
}

func (gd *GracefulDegradation) isEssential(path string) bool {
	for _, prefix := range gd.essentialPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Breaker exposes the breaker for the admin endpoints
func (gd *GracefulDegradation) Breaker() *circuitbreaker.CircuitBreaker {
	return gd.breaker
}
