package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/repository"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// Replayer re-runs the handler of a dead letter
type Replayer interface {
	Replay(ctx context.Context, id int64) error
}

// DeadLetterService backs the dead-letter admin endpoints
type DeadLetterService struct {
	dlqRepo  *repository.DeadLetterRepository
	replayer Replayer
	logger   logger.Logger
}

// NewDeadLetterService creates a new DeadLetterService
func NewDeadLetterService(dlqRepo *repository.DeadLetterRepository, replayer Replayer, logger logger.Logger) *DeadLetterService {
	return &DeadLetterService{
		dlqRepo:  dlqRepo,
		replayer: replayer,
		logger:   logger,
	}
}

// List returns one page of dead letters and the total, optionally filtered by status
func (s *DeadLetterService) List(ctx context.Context, status models.DeadLetterStatus, limit, offset int) ([]*models.DeadLetterMessage, int, error) {
	messages, err := s.dlqRepo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.dlqRepo.Count(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// Get retrieves one dead letter
func (s *DeadLetterService) Get(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	message, err := s.dlqRepo.GetMessage(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Dead letter message %d not found", id))
	}
	return message, err
}

// Retry replays a pending dead letter now. A failed replay leaves it pending.
func (s *DeadLetterService) Retry(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	message, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if message.Status != models.DeadLetterStatusPending {
		return nil, apperrors.NewConflictError("Only pending messages can be retried")
	}

	if err := s.replayer.Replay(ctx, id); err != nil {
		s.logger.Warn("Manual dead letter retry failed", "error", err, "messageID", id)
		return nil, apperrors.NewTemporaryError(fmt.Sprintf("Retry failed: %v", err))
	}

	s.logger.Info("Dead letter message resolved by manual retry", "messageID", id)
	return s.Get(ctx, id)
}

// Discard gives up on a dead letter
func (s *DeadLetterService) Discard(ctx context.Context, id int64, reason string) error {
	if reason == "" {
		reason = "No reason provided"
	}

	err := s.dlqRepo.MarkAsDiscarded(ctx, id, reason)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(fmt.Sprintf("Dead letter message %d not found or already closed", id))
	}
	if err != nil {
		return err
	}

	s.logger.Info("Dead letter message discarded", "messageID", id, "reason", reason)
	return nil
}
