package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/repository"
)

const healthCheckTimeout = 3 * time.Second

// Health represents the health check response
type Health struct {
	Status       string                      `json:"status"`
	Components   map[string]string           `json:"components"`
	Outbox       map[models.OutboxStatus]int `json:"outbox,omitempty"`
	Environment  string                      `json:"environment"`
	ProviderMode string                      `json:"provider_mode"`
	Timestamp    string                      `json:"timestamp"`
}

// healthCheckHandler probes every dependency; any failure reports "degraded"
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:       "operational",
		Components:   make(map[string]string, len(s.deps.HealthChecks)),
		Environment:  s.opts.Env,
		ProviderMode: s.opts.ProviderMode,
		Timestamp:    s.now().Format(time.RFC3339),
	}

	for _, hc := range s.deps.HealthChecks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := hc.Check(ctx)
		cancel()

		if err != nil {
			s.logger.Error("Health check failed", "component", hc.Name, "error", err)
			health.Components[hc.Name] = "unhealthy: " + err.Error()
			health.Status = "degraded"
			continue
		}
		health.Components[hc.Name] = "healthy"
	}

	if s.deps.Outbox != nil {
		counts, err := s.deps.Outbox.CountByStatus(r.Context())
		if err != nil {
			s.logger.Warn("Failed to count outbox messages", "error", err)
		} else {
			health.Outbox = counts
		}
	}

	s.respondWithJSON(w, http.StatusOK, health)
}

// getOutboxStatsHandler returns the number of side-effect jobs per status
func (s *Server) getOutboxStatsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Outbox.CountByStatus(r.Context())
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: counts})
}

// getOutboxMessageHandler returns one side-effect job
func (s *Server) getOutboxMessageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	message, err := s.deps.Outbox.GetMessage(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Outbox message not found")
		return
	}
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: message})
}
