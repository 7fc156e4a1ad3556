package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Aggregate types referenced by outbox rows
const (
	AggregateOrder   = "order"
	AggregateCallLog = "call_log"
)

// Side-effect job types
const (
	EventOrderExport      = "order.export"
	EventCallLogExport    = "call_log.export"
	EventOrderKitchenSend = "order.kitchen_send"
)

// OutboxMessage is a side-effect job written in the same transaction as the state change that caused it
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	NextAttemptAt      *time.Time   `db:"next_attempt_at" json:"next_attempt_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxMessageEvent is the envelope stored in OutboxMessage.Payload
type OutboxMessageEvent struct {
	EventType   string          `json:"event_type"`
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// DecodeEvent unmarshals the envelope of an outbox message
func (m *OutboxMessage) DecodeEvent() (*OutboxMessageEvent, error) {
	var event OutboxMessageEvent

	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// AggregateRef points an export job at the row to export
type AggregateRef struct {
	ID     int64  `json:"id"`
	CallID string `json:"call_id,omitempty"`
}

// KitchenTicket is the message published to the kitchen topic
type KitchenTicket struct {
	OrderID             int64      `json:"order_id"`
	OrderType           OrderType  `json:"order_type"`
	CustomerName        string     `json:"customer_name"`
	CustomerPhone       string     `json:"customer_phone"`
	Items               OrderItems `json:"items"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	PickupTime          string     `json:"pickup_time,omitempty"`
	DeliveryAddress     string     `json:"delivery_address,omitempty"`
	PaymentMethod       string     `json:"payment_method,omitempty"`
	PaymentStatus       string     `json:"payment_status"`
	Total               Money      `json:"total"`
}

// NewKitchenTicket builds the kitchen ticket for an order
func NewKitchenTicket(o *Order) KitchenTicket {
	ticket := KitchenTicket{
		OrderID:             o.ID,
		OrderType:           o.OrderType,
		CustomerName:        o.CustomerName,
		CustomerPhone:       o.CustomerPhone,
		Items:               o.Items,
		SpecialInstructions: StringValue(o.SpecialInstructions),
		PickupTime:          StringValue(o.PickupTime),
		DeliveryAddress:     StringValue(o.DeliveryAddress),
		PaymentStatus:       string(o.PaymentStatus),
		Total:               o.TotalAmount,
	}

	if o.PaymentMethod != nil {
		ticket.PaymentMethod = string(*o.PaymentMethod)
	}
	return ticket
}

func newOutboxMessage(aggregateType, aggregateID, eventType string, data interface{}) (*OutboxMessage, error) {
	raw, err := json.Marshal(data)

	if err != nil {
		return nil, err
	}

	now := GetCurrentTime()
	event := OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: aggregateID,
		OccurredAt:  now,
		Data:        raw,
	}

	payload, err := json.Marshal(event)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
		Status:        OutboxStatusPending,
	}, nil
}

// NewOrderExportEvent creates the job that appends an order to the ledger
func NewOrderExportEvent(orderID int64) (*OutboxMessage, error) {
	id := strconv.FormatInt(orderID, 10)
	return newOutboxMessage(AggregateOrder, id, EventOrderExport, AggregateRef{ID: orderID})
}

// NewCallLogExportEvent creates the job that appends a call log to the ledger
func NewCallLogExportEvent(log *CallLog) (*OutboxMessage, error) {
	return newOutboxMessage(AggregateCallLog, log.CallID, EventCallLogExport, AggregateRef{ID: log.ID, CallID: log.CallID})
}

// NewKitchenSendEvent creates the job that routes a paid order to the kitchen
func NewKitchenSendEvent(orderID int64) (*OutboxMessage, error) {
	id := strconv.FormatInt(orderID, 10)
	return newOutboxMessage(AggregateOrder, id, EventOrderKitchenSend, AggregateRef{ID: orderID})
}
