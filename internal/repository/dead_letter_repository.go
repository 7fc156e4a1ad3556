package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/phone-order-api/internal/database"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

const deadLetterColumns = `
	id, original_message_id, aggregate_type, aggregate_id, event_type, payload,
	error_message, failure_reason, attempts, retry_count, last_retry_at, status, created_at, resolved_at`

// DeadLetterRepository handles database operations related to dead letter messages
type DeadLetterRepository struct {
	db     *database.Database
	outbox *OutboxRepository
	logger logger.Logger
}

// NewDeadLetterRepository creates a new DeadLetterRepository
func NewDeadLetterRepository(db *database.Database, logger logger.Logger) *DeadLetterRepository {
	return &DeadLetterRepository{
		db:     db,
		outbox: NewOutboxRepository(db, logger),
		logger: logger,
	}
}

// Create inserts a new dead letter message
func (r *DeadLetterRepository) Create(ctx context.Context, message *models.DeadLetterMessage) error {
	if err := r.insert(ctx, r.db.DB, message); err != nil {
		r.logger.Error("Failed to create dead letter message", "error", err)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return nil
}

func (r *DeadLetterRepository) insert(ctx context.Context, q sqlx.QueryerContext, message *models.DeadLetterMessage) error {
	query := `
		INSERT INTO dead_letter_messages (
			original_message_id, aggregate_type, aggregate_id, event_type, payload,
			error_message, failure_reason, attempts, retry_count, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) RETURNING id
	`

	return q.QueryRowxContext(
		ctx,
		query,
		message.OriginalMessageID,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.ErrorMessage,
		message.FailureReason,
		message.Attempts,
		message.RetryCount,
		message.Status,
		message.CreatedAt,
	).Scan(&message.ID)
}

// MoveToDeadLetter records the dead letter and marks the outbox message failed in one transaction
func (r *DeadLetterRepository) MoveToDeadLetter(ctx context.Context, outboxMsg *models.OutboxMessage, errorMessage, reason string) (*models.DeadLetterMessage, error) {
	tx, err := r.db.BeginTx(ctx)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	dl := models.NewDeadLetterMessage(outboxMsg, errorMessage, reason)

	if err := r.insert(ctx, tx, dl); err != nil {
		r.logger.Error("Failed to create dead letter message", "error", err, "messageID", outboxMsg.ID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.outbox.markFailed(ctx, tx, outboxMsg.ID, errorMessage); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return dl, nil
}

// List retrieves dead letters newest first, optionally filtered by status
func (r *DeadLetterRepository) List(ctx context.Context, status models.DeadLetterStatus, limit, offset int) ([]*models.DeadLetterMessage, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM dead_letter_messages
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var messages []*models.DeadLetterMessage

	if err := r.db.DB.SelectContext(ctx, &messages, query, string(status), limit, offset); err != nil {
		r.logger.Error("Failed to list dead letter messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return messages, nil
}

// Count counts dead letters, optionally filtered by status
func (r *DeadLetterRepository) Count(ctx context.Context, status models.DeadLetterStatus) (int, error) {
	var count int

	err := r.db.DB.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM dead_letter_messages WHERE ($1 = '' OR status = $1)`, string(status))

	if err != nil {
		r.logger.Error("Failed to count dead letter messages", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return count, nil
}

// GetPendingMessages retrieves pending dead letter messages
func (r *DeadLetterRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM dead_letter_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	var messages []*models.DeadLetterMessage

	if err := r.db.DB.SelectContext(ctx, &messages, query, models.DeadLetterStatusPending, limit); err != nil {
		r.logger.Error("Failed to get pending dead letter messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return messages, nil
}

// MarkAsRetrying claims a pending message for a retry. ErrNotFound means it was not pending.
func (r *DeadLetterRepository) MarkAsRetrying(ctx context.Context, id int64) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, retry_count = retry_count + 1, last_retry_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		models.DeadLetterStatusRetrying, models.GetCurrentTime(), id, models.DeadLetterStatusPending)

	if err != nil {
		r.logger.Error("Failed to mark dead letter message as retrying", "error", err, "messageID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return requireRows(result)
}

// MarkAsResolved marks a message as resolved
func (r *DeadLetterRepository) MarkAsResolved(ctx context.Context, id int64) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, resolved_at = $2
		WHERE id = $3
	`

	result, err := r.db.DB.ExecContext(ctx, query, models.DeadLetterStatusResolved, models.GetCurrentTime(), id)

	if err != nil {
		r.logger.Error("Failed to mark dead letter message as resolved", "error", err, "messageID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return requireRows(result)
}

// MarkAsDiscarded marks a message as permanently discarded
func (r *DeadLetterRepository) MarkAsDiscarded(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, failure_reason = CONCAT(failure_reason, ' | Discarded: ', $2::TEXT), resolved_at = $3
		WHERE id = $4 AND status IN ($5, $6)
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		models.DeadLetterStatusDiscarded, reason, models.GetCurrentTime(), id,
		models.DeadLetterStatusPending, models.DeadLetterStatusRetrying)

	if err != nil {
		r.logger.Error("Failed to mark dead letter message as discarded", "error", err, "messageID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return requireRows(result)
}

// ResetToPending returns a retrying message to the pending queue
func (r *DeadLetterRepository) ResetToPending(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE dead_letter_messages
		SET status = $1, error_message = $2
		WHERE id = $3 AND status = $4
	`

	_, err := r.db.DB.ExecContext(ctx, query,
		models.DeadLetterStatusPending, errorMessage, id, models.DeadLetterStatusRetrying)

	if err != nil {
		r.logger.Error("Failed to reset dead letter message to pending", "error", err, "messageID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetMessage retrieves a message by ID
func (r *DeadLetterRepository) GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	var message models.DeadLetterMessage

	err := r.db.DB.GetContext(ctx, &message, `SELECT `+deadLetterColumns+` FROM dead_letter_messages WHERE id = $1`, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get dead letter message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &message, nil
}
