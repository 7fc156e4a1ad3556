package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// Ledger appends rows to the export spreadsheets
type Ledger interface {
	AppendOrder(ctx context.Context, o *models.Order) (time.Time, error)
	AppendCallLog(ctx context.Context, c *models.CallLog) (time.Time, error)
}

// OrderStore is the order persistence the handlers need
type OrderStore interface {
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	MarkExported(ctx context.Context, id int64, at time.Time) error
	MarkSentToKitchen(ctx context.Context, id int64, at time.Time, estimatedReady time.Time) error
}

// CallLogStore is the call log persistence the handlers need
type CallLogStore interface {
	GetByID(ctx context.Context, id int64) (*models.CallLog, error)
	MarkExported(ctx context.Context, id int64, at time.Time) error
}

func decodeRef(message *models.OutboxMessage) (models.AggregateRef, error) {
	var ref models.AggregateRef

	event, err := message.DecodeEvent()
	if err != nil {
		return ref, fmt.Errorf("failed to unmarshal outbox message: %w", err)
	}

	if err := json.Unmarshal(event.Data, &ref); err != nil {
		return ref, fmt.Errorf("failed to unmarshal %s data: %w", message.EventType, err)
	}
	return ref, nil
}

// ExportHandler appends orders and call logs to the ledger
type ExportHandler struct {
	ledger   Ledger
	orders   OrderStore
	callLogs CallLogStore
	logger   logger.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(ledger Ledger, orders OrderStore, callLogs CallLogStore, logger logger.Logger) *ExportHandler {
	return &ExportHandler{
		ledger:   ledger,
		orders:   orders,
		callLogs: callLogs,
		logger:   logger,
	}
}

// HandleMessage exports the referenced row once; rows already flagged as exported are skipped
func (h *ExportHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	ref, err := decodeRef(message)
	if err != nil {
		return err
	}

	switch message.EventType {
	case models.EventOrderExport:
		return h.exportOrder(ctx, ref.ID)
	case models.EventCallLogExport:
		return h.exportCallLog(ctx, ref.ID)
	}
	return fmt.Errorf("export handler cannot handle %s", message.EventType)
}

func (h *ExportHandler) exportOrder(ctx context.Context, id int64) error {
	order, err := h.orders.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load order %d: %w", id, err)
	}

	if order.ExportedToLedger {
		h.logger.Debug("Order already exported", "orderID", id)
		return nil
	}

	at, err := h.ledger.AppendOrder(ctx, order)
	if err != nil {
		return err
	}

	return h.orders.MarkExported(ctx, id, at)
}

func (h *ExportHandler) exportCallLog(ctx context.Context, id int64) error {
	log, err := h.callLogs.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load call log %d: %w", id, err)
	}

	if log.ExportedToLedger {
		h.logger.Debug("Call log already exported", "callID", log.CallID)
		return nil
	}

	at, err := h.ledger.AppendCallLog(ctx, log)
	if err != nil {
		return err
	}

	return h.callLogs.MarkExported(ctx, id, at)
}
