package api

import (
	"encoding/json"
	"net/http"
)

// getRateLimitsHandler returns the current rate limit settings and metrics
func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{}

	if s.deps.RateLimiter != nil {
		response["global_metrics"] = s.deps.RateLimiter.GetMetrics()
	}
	if s.deps.EndpointLimiter != nil {
		response["endpoint_limits"] = s.deps.EndpointLimiter.GetAllLimits()
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response})
}

// setEndpointRateLimitHandler replaces the limit of one webhook endpoint
func (s *Server) setEndpointRateLimitHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.EndpointLimiter == nil {
		s.respondWithError(w, http.StatusNotFound, "Endpoint rate limiting is disabled")
		return
	}

	var req struct {
		Endpoint   string  `json:"endpoint" validate:"required"`
		MaxTokens  float64 `json:"max_tokens" validate:"gt=0"`
		RefillRate float64 `json:"refill_rate" validate:"gt=0"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	s.deps.EndpointLimiter.SetLimit(req.Endpoint, req.MaxTokens, req.RefillRate)

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"message":     "Rate limit updated successfully",
			"endpoint":    req.Endpoint,
			"max_tokens":  req.MaxTokens,
			"refill_rate": req.RefillRate,
		},
	})
}

// resetRateLimitsHandler restores the global limiter to its maximum rate
func (s *Server) resetRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.RateLimiter != nil {
		s.deps.RateLimiter.Reset()
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]string{"message": "Rate limits reset"},
	})
}
