package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/vaidashi/phone-order-api/internal/models"
)

// getDeadLettersHandler returns one page of dead letters, optionally filtered by status
func (s *Server) getDeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize, offset := pagination(r)

	var status models.DeadLetterStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := models.ParseDeadLetterStatus(raw)
		if !ok {
			s.respondWithError(w, http.StatusBadRequest, "Invalid status. Options: pending, retrying, resolved, discarded")
			return
		}
		status = st
	}

	messages, total, err := s.deps.DeadLetters.List(r.Context(), status, pageSize, offset)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: PaginationResponse{
			Items:      messages,
			TotalCount: total,
			Page:       page,
			PageSize:   pageSize,
			Status:     string(status),
		},
	})
}

// getDeadLetterHandler returns one dead letter
func (s *Server) getDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	message, err := s.deps.DeadLetters.Get(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: message})
}

// retryDeadLetterHandler replays a pending dead letter once
func (s *Server) retryDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	message, err := s.deps.DeadLetters.Retry(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: message})
}

// discardDeadLetterHandler discards a dead letter. The body is optional.
func (s *Server) discardDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	var req DiscardRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	if err := s.deps.DeadLetters.Discard(r.Context(), id, req.Reason); err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Dead letter message discarded",
			"id":      strconv.FormatInt(id, 10),
		},
	})
}
