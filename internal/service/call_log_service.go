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

// CallLogService records calls that did not produce an order
type CallLogService struct {
	callLogRepo *repository.CallLogRepository
	orderRepo   *repository.OrderRepository
	outboxRepo  *repository.OutboxRepository
	logger      logger.Logger
}

// NewCallLogService creates a new CallLogService
func NewCallLogService(
	callLogRepo *repository.CallLogRepository,
	orderRepo *repository.OrderRepository,
	outboxRepo *repository.OutboxRepository,
	logger logger.Logger,
) *CallLogService {
	return &CallLogService{
		callLogRepo: callLogRepo,
		orderRepo:   orderRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
	}
}

// RecordMessage stores a caller's message and queues its ledger export
func (s *CallLogService) RecordMessage(ctx context.Context, log *models.CallLog) (*models.CallLog, error) {
	if log.CallID == "" {
		return nil, apperrors.NewInvalidInputError("call_id is required")
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}()

	if err = s.callLogRepo.UpsertInTx(ctx, tx, log); err != nil {
		return nil, err
	}

	msg, err := models.NewCallLogExportEvent(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox message: %w", err)
	}

	if err = s.outboxRepo.CreateInTx(ctx, tx, msg); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Caller message recorded", "callID", log.CallID, "callLogID", log.ID)
	return log, nil
}

// GetByCallID retrieves the call log of a call
func (s *CallLogService) GetByCallID(ctx context.Context, callID string) (*models.CallLog, error) {
	log, err := s.callLogRepo.GetByCallID(ctx, callID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Call log %s not found", callID))
	}
	return log, err
}

// List returns one page of call logs, newest first, and the total count
func (s *CallLogService) List(ctx context.Context, limit, offset int) ([]*models.CallLog, int, error) {
	logs, err := s.callLogRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.callLogRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
