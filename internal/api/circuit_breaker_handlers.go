package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vaidashi/phone-order-api/pkg/circuitbreaker"
)

func (s *Server) breakers() []*circuitbreaker.CircuitBreaker {
	out := append([]*circuitbreaker.CircuitBreaker{}, s.deps.Breakers...)
	if s.deps.Degradation != nil {
		out = append(out, s.deps.Degradation.Breaker())
	}
	return out
}

// getCircuitBreakerStatusHandler returns the state of the provider breakers and the HTTP breaker
func (s *Server) getCircuitBreakerStatusHandler(w http.ResponseWriter, r *http.Request) {
	breakers := s.breakers()
	metrics := make([]map[string]interface{}, 0, len(breakers))

	for _, b := range breakers {
		metrics = append(metrics, b.GetMetrics())
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: metrics})
}

// resetCircuitBreakerHandler forces one breaker back to closed
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, b := range s.breakers() {
		if b.Name() == name {
			b.Reset()
			s.logger.Info("Circuit breaker reset", "name", name)

			s.respondWithJSON(w, http.StatusOK, ApiResponse{
				Success: true,
				Data: map[string]string{
					"message": "Circuit breaker reset successfully",
					"name":    name,
				},
			})
			return
		}
	}

	s.respondWithError(w, http.StatusNotFound, "Circuit breaker not found")
}
