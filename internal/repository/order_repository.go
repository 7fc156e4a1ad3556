package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vaidashi/phone-order-api/internal/database"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDatabase  = errors.New("database error")
	ErrDuplicate = errors.New("duplicate record")
)

const activeCallIndex = "orders_active_call_id_idx"

const orderColumns = `
	id, order_type, customer_name, customer_phone, customer_email, customer_language,
	delivery_address, city, state, zip_code, delivery_instructions, pickup_time,
	items, special_instructions,
	subtotal_cents, tax_cents, delivery_fee_cents, tip_cents, total_amount_cents,
	payment_status, payment_method, payment_intent_id, payment_link_url, payment_link_sent,
	status, call_id, call_transcription, call_recording_url, call_duration_seconds,
	handled_by_ai, transferred_to_human, transfer_reason,
	sent_to_kitchen, sent_to_kitchen_at, estimated_ready_time,
	exported_to_ledger, exported_at, created_at, updated_at, completed_at`

const insertOrderQuery = `
	INSERT INTO orders (
		order_type, customer_name, customer_phone, customer_email, customer_language,
		delivery_address, city, state, zip_code, delivery_instructions, pickup_time,
		items, special_instructions,
		subtotal_cents, tax_cents, delivery_fee_cents, tip_cents, total_amount_cents,
		payment_status, payment_method, payment_intent_id, payment_link_url, payment_link_sent,
		status, call_id, call_transcription, call_recording_url, call_duration_seconds,
		handled_by_ai, transferred_to_human, transfer_reason,
		created_at, updated_at, completed_at
	) VALUES (
		:order_type, :customer_name, :customer_phone, :customer_email, :customer_language,
		:delivery_address, :city, :state, :zip_code, :delivery_instructions, :pickup_time,
		:items, :special_instructions,
		:subtotal_cents, :tax_cents, :delivery_fee_cents, :tip_cents, :total_amount_cents,
		:payment_status, :payment_method, :payment_intent_id, :payment_link_url, :payment_link_sent,
		:status, :call_id, :call_transcription, :call_recording_url, :call_duration_seconds,
		:handled_by_ai, :transferred_to_human, :transfer_reason,
		:created_at, :updated_at, :completed_at
	) RETURNING id`

// order_type and created_at are immutable
const updateOrderQuery = `
	UPDATE orders SET
		customer_name = :customer_name, customer_phone = :customer_phone,
		customer_email = :customer_email, customer_language = :customer_language,
		delivery_address = :delivery_address, city = :city, state = :state, zip_code = :zip_code,
		delivery_instructions = :delivery_instructions, pickup_time = :pickup_time,
		items = :items, special_instructions = :special_instructions,
		subtotal_cents = :subtotal_cents, tax_cents = :tax_cents, delivery_fee_cents = :delivery_fee_cents,
		tip_cents = :tip_cents, total_amount_cents = :total_amount_cents,
		payment_status = :payment_status, payment_method = :payment_method,
		payment_intent_id = :payment_intent_id, payment_link_url = :payment_link_url,
		payment_link_sent = :payment_link_sent,
		status = :status, call_transcription = :call_transcription,
		call_recording_url = :call_recording_url, call_duration_seconds = :call_duration_seconds,
		handled_by_ai = :handled_by_ai, transferred_to_human = :transferred_to_human,
		transfer_reason = :transfer_reason,
		updated_at = :updated_at, completed_at = :completed_at
	WHERE id = :id`

// OrderFilter narrows order listings
type OrderFilter struct {
	Status    models.OrderStatus
	OrderType models.OrderType
	Limit     int
	Offset    int
}

func (f OrderFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.OrderType != "" {
		args = append(args, f.OrderType)
		clauses = append(clauses, fmt.Sprintf("order_type = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// OrderRepository handles database operations for orders
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// BeginTx starts a transaction shared by the order, call log and outbox repositories
func (r *OrderRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTx(ctx)

	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return tx, nil
}

// CreateInTx inserts a new order within a transaction and sets its ID.
// A second active order for the same call returns ErrDuplicate.
func (r *OrderRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query, args, err := sqlx.Named(insertOrderQuery, order)

	if err != nil {
		return fmt.Errorf("failed to bind order insert: %w", err)
	}

	err = tx.QueryRowxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...).Scan(&order.ID)

	if err != nil {
		if isUniqueViolation(err, activeCallIndex) {
			return fmt.Errorf("%w: active order already exists for call %s", ErrDuplicate, models.StringValue(order.CallID))
		}
		r.logger.Error("Failed to create order", "error", err, "callID", models.StringValue(order.CallID))
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// UpdateInTx writes every mutable field of an order within a transaction
func (r *OrderRepository) UpdateInTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	return r.update(ctx, tx, order)
}

// Update writes every mutable field of an order
func (r *OrderRepository) Update(ctx context.Context, order *models.Order) error {
	return r.update(ctx, r.db.DB, order)
}

func (r *OrderRepository) update(ctx context.Context, q sqlx.ExtContext, order *models.Order) error {
	query, args, err := sqlx.Named(updateOrderQuery, order)

	if err != nil {
		return fmt.Errorf("failed to bind order update: %w", err)
	}

	result, err := q.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)

	if err != nil {
		r.logger.Error("Failed to update order", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return requireRows(result)
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	return r.getOne(ctx, r.db.DB, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves and row-locks an order within a transaction
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Order, error) {
	return r.getOne(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

// GetActiveByCallID retrieves the non-terminal order of a call
func (r *OrderRepository) GetActiveByCallID(ctx context.Context, callID string) (*models.Order, error) {
	return r.getOne(ctx, r.db.DB, `SELECT `+orderColumns+` FROM orders
		WHERE call_id = $1 AND status <> ALL($2)
		ORDER BY id DESC LIMIT 1`, callID, terminalStatuses())
}

// GetActiveByCallIDForUpdate retrieves and row-locks the non-terminal order of a call
func (r *OrderRepository) GetActiveByCallIDForUpdate(ctx context.Context, tx *sqlx.Tx, callID string) (*models.Order, error) {
	return r.getOne(ctx, tx, `SELECT `+orderColumns+` FROM orders
		WHERE call_id = $1 AND status <> ALL($2)
		ORDER BY id DESC LIMIT 1 FOR UPDATE`, callID, terminalStatuses())
}

// GetLatestByCallID retrieves the most recent order of a call regardless of status
func (r *OrderRepository) GetLatestByCallID(ctx context.Context, callID string) (*models.Order, error) {
	return r.getOne(ctx, r.db.DB, `SELECT `+orderColumns+` FROM orders
		WHERE call_id = $1 ORDER BY id DESC LIMIT 1`, callID)
}

func (r *OrderRepository) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q, &order, query, args...)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &order, nil
}

// List retrieves orders newest first
func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	where, args := filter.where()
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, args...)

	if err != nil {
		r.logger.Error("Failed to list orders", "error", err, "limit", filter.Limit, "offset", filter.Offset)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return orders, nil
}

// Count counts the orders matching a filter
func (r *OrderRepository) Count(ctx context.Context, filter OrderFilter) (int, error) {
	where, args := filter.where()

	var count int
	err := r.db.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM orders`+where, args...)

	if err != nil {
		r.logger.Error("Failed to count orders", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return count, nil
}

// MarkPaidInTx moves an order to paid only if it is still awaiting payment.
// It reports whether a row changed so replays can skip follow-up work.
func (r *OrderRepository) MarkPaidInTx(ctx context.Context, tx *sqlx.Tx, id int64, paymentIntentID string, now time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET status = $1, payment_status = $2,
			payment_intent_id = COALESCE(NULLIF($3, ''), payment_intent_id),
			updated_at = $4
		WHERE id = $5 AND status = ANY($6)
	`

	result, err := tx.ExecContext(ctx, query,
		models.OrderStatusPaid,
		models.PaymentStatusPaid,
		paymentIntentID,
		now,
		id,
		pq.Array([]string{
			string(models.OrderStatusPending),
			string(models.OrderStatusConfirmed),
			string(models.OrderStatusPaymentPending),
		}),
	)

	if err != nil {
		r.logger.Error("Failed to mark order paid", "error", err, "orderID", id)
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	n, err := result.RowsAffected()

	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return n > 0, nil
}

// MarkPaymentFailedInTx flags a payment failure unless the order was already paid.
// The lifecycle status is left alone.
func (r *OrderRepository) MarkPaymentFailedInTx(ctx context.Context, tx *sqlx.Tx, id int64, now time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = $2 WHERE id = $3 AND payment_status <> $4`,
		models.PaymentStatusFailed, now, id, models.PaymentStatusPaid)

	if err != nil {
		r.logger.Error("Failed to mark payment failed", "error", err, "orderID", id)
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	n, err := result.RowsAffected()

	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return n > 0, nil
}

// MarkExported flags an order as appended to the ledger
func (r *OrderRepository) MarkExported(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.DB.ExecContext(ctx,
		`UPDATE orders SET exported_to_ledger = TRUE, exported_at = $1 WHERE id = $2`, at, id)

	if err != nil {
		r.logger.Error("Failed to mark order exported", "error", err, "orderID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return requireRows(result)
}

// MarkSentToKitchen flags an order as routed to the kitchen
func (r *OrderRepository) MarkSentToKitchen(ctx context.Context, id int64, at time.Time, estimatedReady time.Time) error {
	result, err := r.db.DB.ExecContext(ctx,
		`UPDATE orders SET sent_to_kitchen = TRUE, sent_to_kitchen_at = $1, estimated_ready_time = $2 WHERE id = $3`,
		at, estimatedReady, id)

	if err != nil {
		r.logger.Error("Failed to mark order sent to kitchen", "error", err, "orderID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return requireRows(result)
}

// PatchCallDetails attaches end-of-call data to the latest order of a call.
// It reports whether an order matched.
func (r *OrderRepository) PatchCallDetails(ctx context.Context, callID string, details CallDetails) (bool, error) {
	query := `
		UPDATE orders SET
			call_transcription = COALESCE($1, call_transcription),
			call_recording_url = COALESCE($2, call_recording_url),
			call_duration_seconds = COALESCE($3, call_duration_seconds),
			updated_at = $4
		WHERE id = (SELECT id FROM orders WHERE call_id = $5 ORDER BY id DESC LIMIT 1)
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		details.Transcript, details.RecordingURL, details.DurationSeconds, models.GetCurrentTime(), callID)

	if err != nil {
		r.logger.Error("Failed to patch order call details", "error", err, "callID", callID)
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	n, err := result.RowsAffected()

	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return n > 0, nil
}

// Stats aggregates dashboard figures. Revenue counts orders created since dayStart that did not fail or get cancelled.
func (r *OrderRepository) Stats(ctx context.Context, dayStart time.Time) (*models.OrderStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_orders,
			COUNT(*) FILTER (WHERE status IN ('pending', 'payment_pending', 'paid')) AS pending_orders,
			COUNT(*) FILTER (WHERE status IN ('delivered', 'picked_up')) AS completed_orders,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed_orders,
			COALESCE(SUM(total_amount_cents) FILTER (
				WHERE created_at >= $1 AND status NOT IN ('failed', 'cancelled')), 0) AS today_revenue_cents,
			COALESCE(ROUND(AVG(total_amount_cents) FILTER (
				WHERE status NOT IN ('failed', 'cancelled'))), 0)::BIGINT AS avg_order_value_cents
		FROM orders
	`

	var stats models.OrderStats
	err := r.db.DB.GetContext(ctx, &stats, query, dayStart)

	if err != nil {
		r.logger.Error("Failed to compute order stats", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &stats, nil
}

// CallDetails is the end-of-call data patched onto orders and call logs
type CallDetails struct {
	Transcript      *string
	RecordingURL    *string
	DurationSeconds *int
	EndedAt         *time.Time
}

func terminalStatuses() interface{} {
	statuses := make([]string, len(models.TerminalOrderStatuses))
	for i, s := range models.TerminalOrderStatuses {
		statuses[i] = string(s)
	}
	return pq.Array(statuses)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error

	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return constraint == "" || pqErr.Constraint == constraint
	}
	return false
}

func requireRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
