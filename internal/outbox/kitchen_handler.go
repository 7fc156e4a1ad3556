package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// Publisher sends a keyed record to a topic
type Publisher interface {
	SendMessage(ctx context.Context, topic string, key string, value []byte, headers map[string]string) error
}

// KitchenHandler routes paid orders to the kitchen topic
type KitchenHandler struct {
	orders          OrderStore
	publisher       Publisher
	topic           string
	deliveryMinutes int
	now             func() time.Time
	logger          logger.Logger
}

// NewKitchenHandler creates a new KitchenHandler. A nil publisher only logs the ticket.
func NewKitchenHandler(orders OrderStore, publisher Publisher, topic string, deliveryMinutes int, logger logger.Logger) *KitchenHandler {
	return &KitchenHandler{
		orders:          orders,
		publisher:       publisher,
		topic:           topic,
		deliveryMinutes: deliveryMinutes,
		now:             models.GetCurrentTime,
		logger:          logger,
	}
}

// HandleMessage publishes the kitchen ticket keyed by order id, then flags the order as sent
func (h *KitchenHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	ref, err := decodeRef(message)
	if err != nil {
		return err
	}

	order, err := h.orders.GetByID(ctx, ref.ID)
	if err != nil {
		return fmt.Errorf("failed to load order %d: %w", ref.ID, err)
	}

	if order.SentToKitchen {
		h.logger.Debug("Order already sent to kitchen", "orderID", order.ID)
		return nil
	}

	ticket, err := json.Marshal(models.NewKitchenTicket(order))
	if err != nil {
		return fmt.Errorf("failed to encode kitchen ticket: %w", err)
	}

	if h.publisher == nil {
		h.logger.Info("Kitchen ticket", "orderID", order.ID, "ticket", string(ticket))
	} else {
		headers := map[string]string{
			"event_type": message.EventType,
			"order_type": string(order.OrderType),
		}
		if err := h.publisher.SendMessage(ctx, h.topic, strconv.FormatInt(order.ID, 10), ticket, headers); err != nil {
			return err
		}
	}

	now := h.now()
	if err := h.orders.MarkSentToKitchen(ctx, order.ID, now, now.Add(h.readyIn(order))); err != nil {
		return err
	}

	h.logger.Info("Order sent to kitchen", "orderID", order.ID, "topic", h.topic)
	return nil
}

// readyIn is the delivery estimate, or the upper bound of a pickup window like "20-30 minutes"
func (h *KitchenHandler) readyIn(order *models.Order) time.Duration {
	if order.OrderType == models.OrderTypeDelivery {
		return time.Duration(h.deliveryMinutes) * time.Minute
	}

	minutes := 30
	fields := strings.FieldsFunc(models.StringValue(order.PickupTime), func(r rune) bool {
		return r < '0' || r > '9'
	})
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil && n > 0 && n <= 240 {
			minutes = n
		}
	}
	return time.Duration(minutes) * time.Minute
}
