package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/phone-order-api/internal/database"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// PaymentEventRepository records processed payment webhook events
type PaymentEventRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewPaymentEventRepository creates a new PaymentEventRepository
func NewPaymentEventRepository(db *database.Database, logger logger.Logger) *PaymentEventRepository {
	return &PaymentEventRepository{
		db:     db,
		logger: logger,
	}
}

// InsertInTx records an event within a transaction. It returns false when the event was already recorded.
func (r *PaymentEventRepository) InsertInTx(ctx context.Context, tx *sqlx.Tx, event *models.PaymentEvent) (bool, error) {
	query := `
		INSERT INTO payment_events (event_id, event_type, order_id, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`

	result, err := tx.ExecContext(ctx, query, event.EventID, event.EventType, event.OrderID, event.ProcessedAt)

	if err != nil {
		r.logger.Error("Failed to record payment event", "error", err, "eventID", event.EventID)
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	n, err := result.RowsAffected()

	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return n == 1, nil
}
