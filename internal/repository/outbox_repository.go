package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vaidashi/phone-order-api/internal/database"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

const outboxColumns = `
	id, aggregate_type, aggregate_id, event_type, payload,
	created_at, processed_at, next_attempt_at, processing_attempts, last_error, status`

// DefaultClaimLease is how long a claimed message may stay in processing before another
// dispatcher takes it over
const DefaultClaimLease = 5 * time.Minute

// OutboxRepository handles database operations for outbox messages
type OutboxRepository struct {
	db     *database.Database
	lease  time.Duration
	logger logger.Logger
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *database.Database, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		lease:  DefaultClaimLease,
		logger: logger,
	}
}

// SetClaimLease changes the processing lease. Non-positive values are ignored.
func (r *OutboxRepository) SetClaimLease(d time.Duration) {
	if d > 0 {
		r.lease = d
	}
}

// Create inserts a new outbox message into the database
func (r *OutboxRepository) Create(ctx context.Context, message *models.OutboxMessage) error {
	if err := r.insert(ctx, r.db.DB, message); err != nil {
		r.logger.Error("Failed to create outbox message", "error", err, "eventType", message.EventType)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return nil
}

// CreateInTx creates a new outbox message within a transaction
func (r *OutboxRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, message *models.OutboxMessage) error {
	if err := r.insert(ctx, tx, message); err != nil {
		return fmt.Errorf("failed to create outbox message in transaction: %w", err)
	}
	return nil
}

func (r *OutboxRepository) insert(ctx context.Context, q sqlx.QueryerContext, message *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (
			aggregate_type, aggregate_id, event_type, payload, created_at, status
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) RETURNING id
	`

	return q.QueryRowxContext(
		ctx,
		query,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.CreatedAt,
		message.Status,
	).Scan(&message.ID)
}

// ClaimPending locks up to limit due messages, flips them to processing and bumps their attempt count.
// A claim holds a lease in next_attempt_at; processing rows whose lease ran out (the dispatcher died
// mid-job) are claimed again. Rows locked by another dispatcher are skipped.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	tx, err := r.db.BeginTx(ctx)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE (status = $1 AND (next_attempt_at IS NULL OR next_attempt_at <= $3))
			OR (status = $2 AND next_attempt_at <= $3)
		ORDER BY created_at ASC
		LIMIT $4
		FOR UPDATE SKIP LOCKED
	`

	now := models.GetCurrentTime()
	var messages []*models.OutboxMessage

	if err := tx.SelectContext(ctx, &messages, query,
		models.OutboxStatusPending, models.OutboxStatusProcessing, now, limit); err != nil {
		r.logger.Error("Failed to claim pending outbox messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if len(messages) == 0 {
		return messages, nil
	}

	ids := make([]int64, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
		if m.Status == models.OutboxStatusProcessing {
			r.logger.Warn("Reclaiming outbox message with expired lease", "messageID", m.ID, "eventType", m.EventType)
		}
	}

	leaseUntil := now.Add(r.lease)

	_, err = tx.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1, next_attempt_at = $2
		WHERE id = ANY($3)
	`, models.OutboxStatusProcessing, leaseUntil, pq.Array(ids))

	if err != nil {
		r.logger.Error("Failed to mark outbox messages as processing", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	for _, m := range messages {
		m.Status = models.OutboxStatusProcessing
		m.ProcessingAttempts++
		m.NextAttemptAt = &leaseUntil
	}

	return messages, nil
}

// MarkAsCompleted updates the status of an outbox message to completed
func (r *OutboxRepository) MarkAsCompleted(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processed_at = $2, last_error = NULL
		WHERE id = $3
	`

	_, err := r.db.DB.ExecContext(ctx, query, models.OutboxStatusCompleted, models.GetCurrentTime(), id)

	if err != nil {
		r.logger.Error("Failed to mark outbox message as completed", "error", err, "message_id", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// ScheduleRetry puts a failed message back in the queue, due at nextAttempt
func (r *OutboxRepository) ScheduleRetry(ctx context.Context, id int64, errorMessage string, nextAttempt time.Time) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2, next_attempt_at = $3
		WHERE id = $4
	`

	_, err := r.db.DB.ExecContext(ctx, query, models.OutboxStatusPending, errorMessage, nextAttempt, id)

	if err != nil {
		r.logger.Error("Failed to schedule outbox retry", "error", err, "message_id", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// MarkAsFailed updates the status of an outbox message to failed
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	return r.markFailed(ctx, r.db.DB, id, errorMessage)
}

func (r *OutboxRepository) markFailed(ctx context.Context, q sqlx.ExecerContext, id int64, errorMessage string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`

	_, err := q.ExecContext(ctx, query, models.OutboxStatusFailed, errorMessage, id)

	if err != nil {
		r.logger.Error("Failed to mark outbox message as failed", "error", err, "message_id", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetMessage retrieves an outbox message by ID
func (r *OutboxRepository) GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	var message models.OutboxMessage

	err := r.db.DB.GetContext(ctx, &message, `SELECT `+outboxColumns+` FROM outbox_messages WHERE id = $1`, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get outbox message", "error", err, "message_id", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &message, nil
}

// CountByStatus reports the number of outbox messages per status
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[models.OutboxStatus]int, error) {
	rows, err := r.db.DB.QueryxContext(ctx, `SELECT status, COUNT(*) FROM outbox_messages GROUP BY status`)

	if err != nil {
		r.logger.Error("Failed to count outbox messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()

	counts := make(map[models.OutboxStatus]int)

	for rows.Next() {
		var status models.OutboxStatus
		var n int

		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return counts, nil
}
