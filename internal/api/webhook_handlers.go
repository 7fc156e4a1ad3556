package api

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/vaidashi/phone-order-api/internal/conversation"
)

const maxWebhookBody = 1 << 20

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
}

// vapiWebhookHandler answers the voice platform. Replies are always 200 so the call keeps going.
func (s *Server) vapiWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if secret := s.opts.VapiSecret; secret != "" {
		got := r.Header.Get("x-vapi-secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			s.logger.Warn("Rejected voice webhook with bad secret", "remoteAddr", r.RemoteAddr)
			s.respondWithJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid webhook secret"})
			return
		}
	}

	s.dispatchVoiceEvent(w, r)
}

// simulationWebhookHandler accepts the same payloads for local testing
func (s *Server) simulationWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if !s.opts.Development {
		s.respondWithJSON(w, http.StatusForbidden, map[string]string{
			"error": "Simulation endpoint only available in development mode",
		})
		return
	}

	s.dispatchVoiceEvent(w, r)
}

func (s *Server) dispatchVoiceEvent(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.respondWithJSON(w, http.StatusOK, map[string]string{"error": "Invalid payload format"})
		return
	}

	ev, err := conversation.ParseEvent(body)
	if err != nil {
		s.logger.Warn("Failed to parse voice webhook", "error", err)
		s.respondWithJSON(w, http.StatusOK, map[string]string{"error": "Invalid payload format"})
		return
	}

	s.logger.Info("Voice webhook received", "type", ev.Type)

	s.respondWithJSON(w, http.StatusOK, s.deps.Voice.HandleEvent(r.Context(), ev))
}

// stripeWebhookHandler verifies and applies a payment event. Failures other than a bad signature
// return 500 so the provider redelivers.
func (s *Server) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	event, err := s.deps.Payments.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("Rejected payment webhook", "error", err)
		s.respondWithError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	if err := s.deps.Orders.HandlePaymentEvent(r.Context(), event); err != nil {
		s.logger.Error("Failed to apply payment event", "error", err, "eventID", event.ID, "type", event.Type)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
