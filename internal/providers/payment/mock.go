package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/providers/sim"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

type decline struct {
	code    string
	message string
}

var declineReasons = []decline{
	{"card_declined", "Your card was declined."},
	{"insufficient_funds", "Your card has insufficient funds."},
	{"expired_card", "Your card has expired."},
	{"incorrect_cvc", "Your card's security code is incorrect."},
	{"processing_error", "An error occurred while processing your card."},
}

// Mock simulates Stripe without network calls
type Mock struct {
	sim      *sim.Simulator
	currency string
	logger   logger.Logger
}

// NewMock creates a mock payment provider
func NewMock(cfg sim.Config, currency string, logger logger.Logger) *Mock {
	if currency == "" {
		currency = "usd"
	}

	logger.Info("Mock payment provider initialized",
		"failureRate", cfg.FailureRate,
		"minLatency", cfg.MinLatency,
		"maxLatency", cfg.MaxLatency)

	return &Mock{
		sim:      sim.New(cfg),
		currency: currency,
		logger:   logger,
	}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) ProcessPayment(ctx context.Context, req ChargeRequest) (*Result, error) {
	if req.Amount <= 0 {
		return &Result{
			Success:      false,
			ErrorCode:    "invalid_amount",
			ErrorMessage: "Amount must be greater than 0",
			Currency:     m.currencyOr(req.Currency),
		}, nil
	}

	latency, err := m.sim.Sleep(ctx)
	if err != nil {
		return nil, err
	}

	if m.sim.ShouldFail() {
		d := declineReasons[m.sim.Intn(len(declineReasons))]
		m.logger.Debug("Mock payment declined", "code", d.code)

		return &Result{
			Success:        false,
			Amount:         req.Amount,
			Currency:       m.currencyOr(req.Currency),
			ErrorCode:      d.code,
			ErrorMessage:   d.message,
			ResponseTimeMs: latency.Milliseconds(),
		}, nil
	}

	intentID := sim.ID("pi_mock_", 24)
	m.logger.Info("Mock payment succeeded", "paymentIntentID", intentID, "amount", req.Amount.String())

	metadata := map[string]string{"status": "succeeded", "mock": "true"}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	return &Result{
		Success:         true,
		PaymentIntentID: intentID,
		ChargeID:        sim.ID("ch_mock_", 24),
		Amount:          req.Amount,
		Currency:        m.currencyOr(req.Currency),
		ResponseTimeMs:  latency.Milliseconds(),
		Metadata:        metadata,
	}, nil
}

func (m *Mock) CreatePaymentIntent(ctx context.Context, amount models.Money, currency string, metadata map[string]string) (*Result, error) {
	latency, err := m.sim.Sleep(ctx)
	if err != nil {
		return nil, err
	}

	if amount <= 0 {
		return &Result{
			Success:        false,
			ErrorCode:      "invalid_amount",
			ErrorMessage:   "Amount must be greater than 0",
			Currency:       m.currencyOr(currency),
			ResponseTimeMs: latency.Milliseconds(),
		}, nil
	}

	intentID := sim.ID("pi_mock_", 24)
	meta := map[string]string{"client_secret": intentID + "_secret_mock"}
	for k, v := range metadata {
		meta[k] = v
	}

	return &Result{
		Success:         true,
		PaymentIntentID: intentID,
		Amount:          amount,
		Currency:        m.currencyOr(currency),
		ResponseTimeMs:  latency.Milliseconds(),
		Metadata:        meta,
	}, nil
}

func (m *Mock) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if _, err := m.sim.Sleep(ctx); err != nil {
		return nil, err
	}

	if req.Amount <= 0 {
		return &CheckoutSession{
			Success:      false,
			ErrorCode:    "invalid_amount",
			ErrorMessage: "Amount must be greater than 0",
		}, nil
	}

	id := sim.ID("cs_mock_", 24)

	return &CheckoutSession{
		Success:   true,
		SessionID: id,
		URL:       fmt.Sprintf("https://checkout.stripe.com/mock/%s", id),
		Metadata:  CheckoutMetadata(req.OrderID),
	}, nil
}

func (m *Mock) Refund(ctx context.Context, paymentIntentID string, amount *models.Money, reason string) (*RefundResult, error) {
	if _, err := m.sim.Sleep(ctx); err != nil {
		return nil, err
	}

	if !strings.HasPrefix(paymentIntentID, "pi_") {
		return &RefundResult{
			Success:      false,
			Status:       "failed",
			ErrorMessage: "Invalid payment intent ID",
		}, nil
	}

	result := &RefundResult{
		Success:  true,
		RefundID: sim.ID("re_mock_", 24),
		Status:   "succeeded",
	}
	if amount != nil {
		result.Amount = *amount
	}

	m.logger.Info("Mock refund processed", "refundID", result.RefundID, "reason", reason)
	return result, nil
}

// VerifyWebhook parses the payload without checking the signature
func (m *Mock) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := parseEvent(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

func (m *Mock) HealthCheck(ctx context.Context) bool {
	return true
}

func (m *Mock) currencyOr(currency string) string {
	if currency == "" {
		return m.currency
	}
	return strings.ToLower(currency)
}
