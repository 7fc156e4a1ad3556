// Package payment defines the payment provider contract and its mock and Stripe backends.
//
// Business failures such as declines are reported in the result with a stable ErrorCode.
// A returned error means the provider could not be reached or answered unexpectedly.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/vaidashi/phone-order-api/internal/models"
)

// ErrInvalidSignature is returned when a webhook payload fails verification
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Provider is implemented by every payment backend
type Provider interface {
	Name() string
	ProcessPayment(ctx context.Context, req ChargeRequest) (*Result, error)
	CreatePaymentIntent(ctx context.Context, amount models.Money, currency string, metadata map[string]string) (*Result, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	Refund(ctx context.Context, paymentIntentID string, amount *models.Money, reason string) (*RefundResult, error)
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
	HealthCheck(ctx context.Context) bool
}

// ChargeRequest describes a server side charge
type ChargeRequest struct {
	Amount        models.Money
	Currency      string
	CustomerEmail string
	CustomerName  string
	Description   string
	Metadata      map[string]string
}

// Result is the outcome of a charge or payment intent
type Result struct {
	Success         bool              `json:"success"`
	PaymentIntentID string            `json:"payment_intent_id,omitempty"`
	ChargeID        string            `json:"charge_id,omitempty"`
	Amount          models.Money      `json:"amount"`
	Currency        string            `json:"currency"`
	ErrorCode       string            `json:"error_code,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	ResponseTimeMs  int64             `json:"response_time_ms"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// RefundResult is the outcome of a refund
type RefundResult struct {
	Success      bool         `json:"success"`
	RefundID     string       `json:"refund_id,omitempty"`
	Amount       models.Money `json:"amount"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// CheckoutRequest describes a hosted checkout page for one order
type CheckoutRequest struct {
	OrderID       int64
	Amount        models.Money
	Currency      string
	Description   string
	Summary       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is a created hosted checkout page
type CheckoutSession struct {
	Success      bool              `json:"success"`
	SessionID    string            `json:"session_id,omitempty"`
	URL          string            `json:"url,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

// WebhookEvent is a verified payment provider event
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object EventObject `json:"object"`
	} `json:"data"`
}

// EventObject is the subset of a checkout session or payment intent the webhook handler reads
type EventObject struct {
	ID            string            `json:"id"`
	Object        string            `json:"object"`
	PaymentIntent string            `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// OrderID returns the order referenced by metadata.order_id
func (e *WebhookEvent) OrderID() (int64, bool) {
	raw, ok := e.Data.Object.Metadata["order_id"]
	if !ok {
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// PaymentIntentID returns the payment intent the event refers to
func (e *WebhookEvent) PaymentIntentID() string {
	if e.Data.Object.PaymentIntent != "" {
		return e.Data.Object.PaymentIntent
	}
	if e.Data.Object.Object == "payment_intent" {
		return e.Data.Object.ID
	}
	return ""
}

func parseEvent(payload []byte) (*WebhookEvent, error) {
	var event WebhookEvent

	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	if event.ID == "" || event.Type == "" {
		return nil, errors.New("event id and type are required")
	}
	return &event, nil
}

// CheckoutMetadata is attached to every checkout session so the webhook can find the order
func CheckoutMetadata(orderID int64) map[string]string {
	return map[string]string{"order_id": strconv.FormatInt(orderID, 10)}
}
