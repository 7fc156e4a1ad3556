package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusConfirmed          OrderStatus = "confirmed"
	OrderStatusPaymentPending     OrderStatus = "payment_pending"
	OrderStatusPaid               OrderStatus = "paid"
	OrderStatusPreparing          OrderStatus = "preparing"
	OrderStatusReady              OrderStatus = "ready"
	OrderStatusOutForDelivery     OrderStatus = "out_for_delivery"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusPickedUp           OrderStatus = "picked_up"
	OrderStatusFailed             OrderStatus = "failed"
	OrderStatusCancelled          OrderStatus = "cancelled"
	OrderStatusTransferredToHuman OrderStatus = "transferred_to_human"
)

// AllOrderStatuses lists every status in lifecycle order
var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPaymentPending,
	OrderStatusPaid,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusPickedUp,
	OrderStatusFailed,
	OrderStatusCancelled,
	OrderStatusTransferredToHuman,
}

// TerminalOrderStatuses are the statuses excluded from the one-active-order-per-call constraint
var TerminalOrderStatuses = []OrderStatus{
	OrderStatusDelivered,
	OrderStatusPickedUp,
	OrderStatusFailed,
	OrderStatusCancelled,
}

// ParseOrderStatus validates a status string
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range AllOrderStatuses {
		if string(st) == strings.ToLower(s) {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	for _, t := range TerminalOrderStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// IsSuccess reports whether the order completed successfully
func (s OrderStatus) IsSuccess() bool {
	return s == OrderStatusDelivered || s == OrderStatusPickedUp
}

// Human returns the wording used when reading the status back to a caller
func (s OrderStatus) Human() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// OrderType is either pickup or delivery
type OrderType string

const (
	OrderTypePickup   OrderType = "pickup"
	OrderTypeDelivery OrderType = "delivery"
)

// ParseOrderType validates an order type string
func ParseOrderType(s string) (OrderType, bool) {
	switch OrderType(strings.ToLower(s)) {
	case OrderTypePickup:
		return OrderTypePickup, true
	case OrderTypeDelivery:
		return OrderTypeDelivery, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCash PaymentMethod = "cash"
)

// DefaultPickupTime is used when a pickup caller does not name a time
const DefaultPickupTime = "20-30 minutes"

// MaxItemQuantity is the largest quantity accepted on a single line
const MaxItemQuantity = 99

const maxUnitPrice Money = 1000000

// ErrInvalidTransition is returned when a status change is not allowed by the lifecycle
var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusPaymentPending, OrderStatusPaid},
	OrderStatusConfirmed:      {OrderStatusPaymentPending, OrderStatusPaid},
	OrderStatusPaymentPending: {OrderStatusPaid},
	OrderStatusPaid:           {OrderStatusPreparing},
	OrderStatusPreparing:      {OrderStatusReady},
	OrderStatusReady:          {OrderStatusOutForDelivery, OrderStatusPickedUp},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
}

// CanTransition reports whether an order of the given type may move from one status to another.
// Any non-terminal order may fail, be cancelled or be handed to a human.
func CanTransition(orderType OrderType, from, to OrderStatus) bool {
	if from.IsTerminal() || from == to {
		return false
	}

	switch to {
	case OrderStatusFailed, OrderStatusCancelled, OrderStatusTransferredToHuman:
		return true
	case OrderStatusOutForDelivery:
		if orderType != OrderTypeDelivery {
			return false
		}
	case OrderStatusPickedUp:
		if orderType != OrderTypePickup {
			return false
		}
	}

	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem is a line item of an order
type OrderItem struct {
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	UnitPrice           Money  `json:"unit_price"`
	TotalPrice          Money  `json:"total_price"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// OrderItems is stored as a JSONB array
type OrderItems []OrderItem

func (it OrderItems) Value() (driver.Value, error) {
	if it == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(it)
}

func (it *OrderItems) Scan(src interface{}) error {
	var data []byte

	switch v := src.(type) {
	case nil:
		*it = OrderItems{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported items type %T", src)
	}

	return json.Unmarshal(data, it)
}

// Summary renders "2x Pizza Margherita, 1x Coca-Cola"
func (it OrderItems) Summary() string {
	parts := make([]string, 0, len(it))
	for _, item := range it {
		parts = append(parts, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
	}
	return strings.Join(parts, ", ")
}

// Order represents a phone or API order
type Order struct {
	ID        int64     `db:"id" json:"id"`
	OrderType OrderType `db:"order_type" json:"order_type"`

	CustomerName     string  `db:"customer_name" json:"customer_name"`
	CustomerPhone    string  `db:"customer_phone" json:"customer_phone"`
	CustomerEmail    *string `db:"customer_email" json:"customer_email,omitempty"`
	CustomerLanguage string  `db:"customer_language" json:"customer_language"`

	DeliveryAddress      *string `db:"delivery_address" json:"delivery_address,omitempty"`
	City                 *string `db:"city" json:"city,omitempty"`
	State                *string `db:"state" json:"state,omitempty"`
	ZipCode              *string `db:"zip_code" json:"zip_code,omitempty"`
	DeliveryInstructions *string `db:"delivery_instructions" json:"delivery_instructions,omitempty"`
	PickupTime           *string `db:"pickup_time" json:"pickup_time,omitempty"`

	Items               OrderItems `db:"items" json:"items"`
	SpecialInstructions *string    `db:"special_instructions" json:"special_instructions,omitempty"`

	Subtotal    Money `db:"subtotal_cents" json:"subtotal"`
	Tax         Money `db:"tax_cents" json:"tax"`
	DeliveryFee Money `db:"delivery_fee_cents" json:"delivery_fee"`
	Tip         Money `db:"tip_cents" json:"tip"`
	TotalAmount Money `db:"total_amount_cents" json:"total_amount"`

	PaymentStatus   PaymentStatus  `db:"payment_status" json:"payment_status"`
	PaymentMethod   *PaymentMethod `db:"payment_method" json:"payment_method,omitempty"`
	PaymentIntentID *string        `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	PaymentLinkURL  *string        `db:"payment_link_url" json:"payment_link_url,omitempty"`
	PaymentLinkSent bool           `db:"payment_link_sent" json:"payment_link_sent"`

	Status OrderStatus `db:"status" json:"status"`

	CallID              *string `db:"call_id" json:"call_id,omitempty"`
	CallTranscription   *string `db:"call_transcription" json:"call_transcription,omitempty"`
	CallRecordingURL    *string `db:"call_recording_url" json:"call_recording_url,omitempty"`
	CallDurationSeconds *int    `db:"call_duration_seconds" json:"call_duration_seconds,omitempty"`
	HandledByAI         bool    `db:"handled_by_ai" json:"handled_by_ai"`
	TransferredToHuman  bool    `db:"transferred_to_human" json:"transferred_to_human"`
	TransferReason      *string `db:"transfer_reason" json:"transfer_reason,omitempty"`

	SentToKitchen      bool       `db:"sent_to_kitchen" json:"sent_to_kitchen"`
	SentToKitchenAt    *time.Time `db:"sent_to_kitchen_at" json:"sent_to_kitchen_at,omitempty"`
	EstimatedReadyTime *time.Time `db:"estimated_ready_time" json:"estimated_ready_time,omitempty"`

	ExportedToLedger bool       `db:"exported_to_ledger" json:"exported_to_ledger"`
	ExportedAt       *time.Time `db:"exported_at" json:"exported_at,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// NewOrder creates a pending order with the defaults every channel shares
func NewOrder(orderType OrderType, name, phone string, items OrderItems) *Order {
	now := GetCurrentTime()

	return &Order{
		OrderType:        orderType,
		CustomerName:     name,
		CustomerPhone:    phone,
		CustomerLanguage: "en",
		Items:            items,
		PaymentStatus:    PaymentStatusPending,
		Status:           OrderStatusPending,
		HandledByAI:      true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Validate checks the fulfillment invariants of an order before it is stored
func (o *Order) Validate() error {
	if strings.TrimSpace(o.CustomerPhone) == "" {
		return errors.New("customer_phone is required")
	}
	if len(o.Items) == 0 {
		return errors.New("order must contain at least one item")
	}

	for _, item := range o.Items {
		if item.Quantity < 1 || item.Quantity > MaxItemQuantity {
			return fmt.Errorf("item %q must have quantity between 1 and %d", item.Name, MaxItemQuantity)
		}
		if item.UnitPrice <= 0 || item.UnitPrice > maxUnitPrice {
			return fmt.Errorf("item %q must have a unit price between $0.01 and %s", item.Name, maxUnitPrice)
		}
	}

	switch o.OrderType {
	case OrderTypeDelivery:
		if StringValue(o.DeliveryAddress) == "" || StringValue(o.ZipCode) == "" {
			return errors.New("delivery orders require delivery_address and zip_code")
		}
	case OrderTypePickup:
		if StringValue(o.PickupTime) == "" {
			return errors.New("pickup orders require pickup_time")
		}
	default:
		return fmt.Errorf("invalid order_type %q", o.OrderType)
	}

	if o.Tip < 0 {
		return errors.New("tip must not be negative")
	}
	if o.Subtotal <= 0 || o.TotalAmount <= 0 {
		return errors.New("order totals must be positive")
	}
	return nil
}

// ApplyStatus moves the order to a new status, enforcing the lifecycle and its side rules
func (o *Order) ApplyStatus(to OrderStatus, now time.Time) error {
	if !CanTransition(o.OrderType, o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	o.Status = to
	o.UpdatedAt = now

	if to.IsSuccess() {
		o.CompletedAt = &now
		if o.PaymentMethod != nil && *o.PaymentMethod == PaymentMethodCash {
			o.PaymentStatus = PaymentStatusPaid
		}
	}

	if to == OrderStatusTransferredToHuman {
		o.TransferredToHuman = true
	}
	return nil
}

// EstimatedTime is the wait quoted back to the caller
func (o *Order) EstimatedTime(deliveryMinutes int) string {
	if o.OrderType == OrderTypePickup {
		if t := StringValue(o.PickupTime); t != "" {
			return t
		}
		return DefaultPickupTime
	}
	return fmt.Sprintf("%d minutes", deliveryMinutes)
}

// OrderStats backs the dashboard endpoint
type OrderStats struct {
	TotalOrders     int   `db:"total_orders" json:"total_orders"`
	PendingOrders   int   `db:"pending_orders" json:"pending_orders"`
	CompletedOrders int   `db:"completed_orders" json:"delivered_orders"`
	FailedOrders    int   `db:"failed_orders" json:"failed_orders"`
	TodayRevenue    Money `db:"today_revenue_cents" json:"today_revenue"`
	AvgOrderValue   Money `db:"avg_order_value_cents" json:"avg_order_value"`
}

// SuccessRate is the percentage of orders that did not fail, 100 when there are none
func (s OrderStats) SuccessRate() float64 {
	if s.TotalOrders == 0 {
		return 100
	}
	rate := float64(s.TotalOrders-s.FailedOrders) / float64(s.TotalOrders) * 100
	return float64(int64(rate*10+0.5)) / 10
}
