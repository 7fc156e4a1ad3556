package models

import "time"

// PaymentEvent records a processed payment webhook event so replays are ignored
type PaymentEvent struct {
	EventID     string    `db:"event_id" json:"event_id"`
	EventType   string    `db:"event_type" json:"event_type"`
	OrderID     *int64    `db:"order_id" json:"order_id,omitempty"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}

// Payment webhook event types acted upon
const (
	PaymentEventCheckoutCompleted = "checkout.session.completed"
	PaymentEventCheckoutExpired   = "checkout.session.expired"
	PaymentEventIntentFailed      = "payment_intent.payment_failed"
	PaymentEventIntentSucceeded   = "payment_intent.succeeded"
)
