package notification

import (
	"context"

	"github.com/vaidashi/phone-order-api/internal/providers/payment"
	"github.com/vaidashi/phone-order-api/internal/providers/sim"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// Mock logs deliveries instead of sending them
type Mock struct {
	composer
	sim *sim.Simulator
}

// NewMock creates a mock notification provider. Payment links are created through payments.
func NewMock(cfg sim.Config, restaurant, baseURL string, payments payment.Provider, logger logger.Logger) *Mock {
	logger.Info("Mock notification provider initialized", "failureRate", cfg.FailureRate)

	return &Mock{
		composer: composer{
			restaurant: restaurant,
			baseURL:    baseURL,
			payments:   payments,
			provider:   "mock",
			logger:     logger,
		},
		sim: sim.New(cfg),
	}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) SendSMS(ctx context.Context, to, body string) (*Result, error) {
	if _, err := m.sim.Sleep(ctx); err != nil {
		return nil, err
	}

	if m.sim.ShouldFail() {
		m.logger.Warn("Mock SMS failed", "to", to)
		return &Result{Provider: "mock", ErrorCode: "delivery_failed", ErrorMessage: "Simulated SMS failure"}, nil
	}

	id := sim.ID("sms_mock_", 12)
	m.logger.Info("Mock SMS sent", "to", to, "messageID", id, "preview", preview(body))

	return &Result{Success: true, MessageID: id, Provider: "mock"}, nil
}

func (m *Mock) SendEmail(ctx context.Context, email Email) (*Result, error) {
	if _, err := m.sim.Sleep(ctx); err != nil {
		return nil, err
	}

	if m.sim.ShouldFail() {
		m.logger.Warn("Mock email failed", "to", email.To)
		return &Result{Provider: "mock", ErrorCode: "delivery_failed", ErrorMessage: "Simulated email failure"}, nil
	}

	id := sim.ID("email_mock_", 12)
	m.logger.Info("Mock email sent", "to", email.To, "subject", email.Subject, "messageID", id)

	return &Result{Success: true, MessageID: id, Provider: "mock"}, nil
}

func (m *Mock) SendOrderConfirmation(ctx context.Context, c Confirmation) (*Result, error) {
	return m.sendOrderConfirmation(ctx, m, c)
}

func (m *Mock) SendPaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLinkResult, error) {
	return m.sendPaymentLink(ctx, m, req)
}

func (m *Mock) HealthCheck(ctx context.Context) bool {
	return true
}

func preview(body string) string {
	r := []rune(body)
	if len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return body
}
