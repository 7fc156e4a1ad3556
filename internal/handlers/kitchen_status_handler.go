// Package handlers consumes records published back to us by downstream systems.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Shopify/sarama"

	"github.com/vaidashi/phone-order-api/internal/models"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// StatusUpdater applies a lifecycle transition through the same guard as the admin API
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, to models.OrderStatus) (*models.Order, error)
}

// KitchenUpdate is a record on the kitchen status topic
type KitchenUpdate struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

var kitchenStatuses = map[models.OrderStatus]bool{
	models.OrderStatusPreparing:      true,
	models.OrderStatusReady:          true,
	models.OrderStatusOutForDelivery: true,
	models.OrderStatusDelivered:      true,
	models.OrderStatusPickedUp:       true,
}

// KitchenStatusHandler moves orders along as the kitchen reports progress
type KitchenStatusHandler struct {
	orders StatusUpdater
	logger logger.Logger
}

// NewKitchenStatusHandler creates a new KitchenStatusHandler
func NewKitchenStatusHandler(orders StatusUpdater, logger logger.Logger) *KitchenStatusHandler {
	return &KitchenStatusHandler{
		orders: orders,
		logger: logger,
	}
}

// HandleMessage applies one kitchen update. Malformed and out-of-order updates are dropped;
// only storage failures are returned.
func (h *KitchenStatusHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var update KitchenUpdate

	if err := json.Unmarshal(msg.Value, &update); err != nil {
		h.logger.Warn("Dropping malformed kitchen update", "error", err, "offset", msg.Offset)
		return nil
	}

	status, ok := models.ParseOrderStatus(update.Status)
	if !ok || !kitchenStatuses[status] || update.OrderID <= 0 {
		h.logger.Warn("Dropping invalid kitchen update", "orderID", update.OrderID, "status", update.Status)
		return nil
	}

	order, err := h.orders.UpdateStatus(ctx, update.OrderID, status)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrNotFound) {
			h.logger.Warn("Kitchen update rejected", "error", err, "orderID", update.OrderID, "status", status)
			return nil
		}
		return fmt.Errorf("failed to apply kitchen update for order %d: %w", update.OrderID, err)
	}

	h.logger.Info("Kitchen update applied", "orderID", order.ID, "status", order.Status)
	return nil
}
