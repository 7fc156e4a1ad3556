package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/phone-order-api/internal/database"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

const callLogColumns = `
	id, call_id, caller_phone, caller_language, call_started_at, call_ended_at, duration_seconds,
	recording_url, transcription, wanted_to_order, order_id, outcome, handled_by_ai,
	transferred_to_human, transfer_reason, customer_message, exported_to_ledger, created_at, updated_at`

// Upsert keyed on call_id. Later writes fill in fields without erasing earlier ones.
const upsertCallLogQuery = `
	INSERT INTO call_logs (
		call_id, caller_phone, caller_language, call_started_at, call_ended_at, duration_seconds,
		recording_url, transcription, wanted_to_order, order_id, outcome, handled_by_ai,
		transferred_to_human, transfer_reason, customer_message, created_at, updated_at
	) VALUES (
		:call_id, :caller_phone, :caller_language, :call_started_at, :call_ended_at, :duration_seconds,
		:recording_url, :transcription, :wanted_to_order, :order_id, :outcome, :handled_by_ai,
		:transferred_to_human, :transfer_reason, :customer_message, :created_at, :updated_at
	)
	ON CONFLICT (call_id) DO UPDATE SET
		caller_phone = CASE WHEN call_logs.caller_phone = 'unknown' THEN EXCLUDED.caller_phone ELSE call_logs.caller_phone END,
		call_ended_at = COALESCE(EXCLUDED.call_ended_at, call_logs.call_ended_at),
		duration_seconds = COALESCE(EXCLUDED.duration_seconds, call_logs.duration_seconds),
		recording_url = COALESCE(EXCLUDED.recording_url, call_logs.recording_url),
		transcription = COALESCE(EXCLUDED.transcription, call_logs.transcription),
		wanted_to_order = call_logs.wanted_to_order OR EXCLUDED.wanted_to_order,
		order_id = COALESCE(EXCLUDED.order_id, call_logs.order_id),
		outcome = EXCLUDED.outcome,
		transferred_to_human = call_logs.transferred_to_human OR EXCLUDED.transferred_to_human,
		transfer_reason = COALESCE(EXCLUDED.transfer_reason, call_logs.transfer_reason),
		customer_message = COALESCE(EXCLUDED.customer_message, call_logs.customer_message),
		updated_at = EXCLUDED.updated_at
	RETURNING id, created_at`

// CallLogRepository handles database operations for call logs
type CallLogRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewCallLogRepository creates a new CallLogRepository
func NewCallLogRepository(db *database.Database, logger logger.Logger) *CallLogRepository {
	return &CallLogRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertInTx inserts or merges the call log of a call within a transaction
func (r *CallLogRepository) UpsertInTx(ctx context.Context, tx *sqlx.Tx, log *models.CallLog) error {
	query, args, err := sqlx.Named(upsertCallLogQuery, log)

	if err != nil {
		return fmt.Errorf("failed to bind call log upsert: %w", err)
	}

	err = tx.QueryRowxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		r.logger.Error("Failed to upsert call log", "error", err, "callID", log.CallID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// LinkOrderInTx points the call log of a call at its order and marks the call as ordered.
// The row is flagged for a fresh ledger export. It returns ErrNotFound when the call has no log yet.
func (r *CallLogRepository) LinkOrderInTx(ctx context.Context, tx *sqlx.Tx, callID string, orderID int64) (*models.CallLog, error) {
	query := `
		UPDATE call_logs SET
			order_id = $1,
			outcome = $2,
			wanted_to_order = TRUE,
			exported_to_ledger = FALSE,
			updated_at = $3
		WHERE call_id = $4
		RETURNING ` + callLogColumns

	var log models.CallLog
	err := tx.GetContext(ctx, &log, query, orderID, models.CallOutcomeOrderCompleted, models.GetCurrentTime(), callID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to link call log to order", "error", err, "callID", callID, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &log, nil
}

// GetByCallID retrieves the call log of a call
func (r *CallLogRepository) GetByCallID(ctx context.Context, callID string) (*models.CallLog, error) {
	var log models.CallLog
	err := r.db.DB.GetContext(ctx, &log, `SELECT `+callLogColumns+` FROM call_logs WHERE call_id = $1`, callID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get call log", "error", err, "callID", callID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &log, nil
}

// GetByID retrieves a call log by its ID
func (r *CallLogRepository) GetByID(ctx context.Context, id int64) (*models.CallLog, error) {
	var log models.CallLog
	err := r.db.DB.GetContext(ctx, &log, `SELECT `+callLogColumns+` FROM call_logs WHERE id = $1`, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get call log", "error", err, "id", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &log, nil
}

// List retrieves call logs newest first
func (r *CallLogRepository) List(ctx context.Context, limit, offset int) ([]*models.CallLog, error) {
	var logs []*models.CallLog
	err := r.db.DB.SelectContext(ctx, &logs,
		`SELECT `+callLogColumns+` FROM call_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)

	if err != nil {
		r.logger.Error("Failed to list call logs", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return logs, nil
}

// Count counts all call logs
func (r *CallLogRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM call_logs`)

	if err != nil {
		r.logger.Error("Failed to count call logs", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return count, nil
}

// PatchCallDetails attaches end-of-call data to the call log of a call.
// It reports whether a call log matched.
func (r *CallLogRepository) PatchCallDetails(ctx context.Context, callID string, details CallDetails) (bool, error) {
	query := `
		UPDATE call_logs SET
			transcription = COALESCE($1, transcription),
			recording_url = COALESCE($2, recording_url),
			duration_seconds = COALESCE($3, duration_seconds),
			call_ended_at = COALESCE($4, call_ended_at),
			updated_at = $5
		WHERE call_id = $6
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		details.Transcript, details.RecordingURL, details.DurationSeconds, details.EndedAt,
		models.GetCurrentTime(), callID)

	if err != nil {
		r.logger.Error("Failed to patch call log details", "error", err, "callID", callID)
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	n, err := result.RowsAffected()

	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return n > 0, nil
}

// MarkExported flags a call log as appended to the ledger
func (r *CallLogRepository) MarkExported(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.DB.ExecContext(ctx,
		`UPDATE call_logs SET exported_to_ledger = TRUE, updated_at = $1 WHERE id = $2`, at, id)

	if err != nil {
		r.logger.Error("Failed to mark call log exported", "error", err, "id", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return requireRows(result)
}
