// Package notification delivers SMS and email to callers.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/providers/payment"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// Provider is implemented by every notification backend
type Provider interface {
	Name() string
	SendSMS(ctx context.Context, to, body string) (*Result, error)
	SendEmail(ctx context.Context, email Email) (*Result, error)
	SendOrderConfirmation(ctx context.Context, c Confirmation) (*Result, error)
	SendPaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLinkResult, error)
	HealthCheck(ctx context.Context) bool
}

// Result is the outcome of one delivery
type Result struct {
	Success      bool   `json:"success"`
	MessageID    string `json:"message_id,omitempty"`
	Provider     string `json:"provider"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Email is a multipart message. Text falls back to HTML when empty.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Confirmation is the data needed to confirm a placed order
type Confirmation struct {
	OrderID    int64
	Name       string
	Phone      string
	Email      string
	Type       models.OrderType
	Address    string
	PickupTime string
	Total      models.Money
}

// PaymentLinkRequest asks for a checkout page to be created and sent to the caller
type PaymentLinkRequest struct {
	OrderID int64
	Phone   string
	Email   string
	Amount  models.Money
	Summary string
}

// PaymentLinkResult carries the checkout page that was sent
type PaymentLinkResult struct {
	Success           bool   `json:"success"`
	PaymentURL        string `json:"payment_url,omitempty"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	ErrorCode         string `json:"error_code,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

type channels interface {
	SendSMS(ctx context.Context, to, body string) (*Result, error)
	SendEmail(ctx context.Context, email Email) (*Result, error)
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h1 style="color: #ff4757;">Order Confirmed!</h1>
  <p>Hi {{.Name}},</p>
  <p>Your order <strong>#{{.OrderID}}</strong> has been confirmed.</p>
  <div style="background: #f8f9fa; padding: 15px; border-radius: 8px; margin: 20px 0;">
    <p><strong>{{.Details}}</strong></p>
    <p>Total: <strong>{{.Total}}</strong></p>
  </div>
  <p>Thank you for ordering from {{.Restaurant}}!</p>
</div>`))

var paymentLinkHTML = template.Must(template.New("payment_link").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h1 style="color: #ff4757;">Complete Your Order</h1>
  <p>Order #{{.OrderID}}</p>
  <p>Total: <strong>{{.Total}}</strong></p>
  <a href="{{.URL}}" style="display: inline-block; background: #ff4757; color: white; padding: 15px 30px; text-decoration: none; border-radius: 8px; margin: 20px 0;">Pay Now</a>
  <p style="color: #666; font-size: 12px;">This link expires in 24 hours.</p>
</div>`))

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer

	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// ConfirmationText is the SMS body sent when an order is confirmed
func ConfirmationText(c Confirmation, restaurant string) string {
	return fmt.Sprintf("Hi %s! Your order #%d has been confirmed.\n%s\nTotal: %s\nThank you for ordering from %s!",
		c.Name, c.OrderID, confirmationDetails(c), c.Total, restaurant)
}

// PaymentLinkText is the SMS body carrying a checkout link
func PaymentLinkText(orderID int64, amount models.Money, url, restaurant string) string {
	return fmt.Sprintf("Complete your order #%d (%s):\n%s\n- %s", orderID, amount, url, restaurant)
}

func confirmationDetails(c Confirmation) string {
	if c.Type == models.OrderTypePickup {
		return "Pickup Time: " + c.PickupTime
	}
	return "Delivery to: " + c.Address
}

// composer builds the order level notifications on top of the raw channels
type composer struct {
	restaurant string
	baseURL    string
	payments   payment.Provider
	provider   string
	logger     logger.Logger
}

func (c *composer) sendOrderConfirmation(ctx context.Context, ch channels, conf Confirmation) (*Result, error) {
	text := ConfirmationText(conf, c.restaurant)

	sms, err := ch.SendSMS(ctx, conf.Phone, text)
	if err != nil {
		return nil, err
	}

	delivered := sms.Success

	if conf.Email != "" {
		html, err := render(confirmationHTML, map[string]interface{}{
			"Name":       conf.Name,
			"OrderID":    conf.OrderID,
			"Details":    confirmationDetails(conf),
			"Total":      conf.Total.String(),
			"Restaurant": c.restaurant,
		})
		if err != nil {
			return nil, err
		}

		email, err := ch.SendEmail(ctx, Email{
			To:      conf.Email,
			Subject: fmt.Sprintf("Order Confirmed #%d - %s", conf.OrderID, c.restaurant),
			HTML:    html,
			Text:    text,
		})
		if err != nil {
			c.logger.Warn("Confirmation email failed", "orderID", conf.OrderID, "error", err)
		} else {
			delivered = delivered || email.Success
		}
	}

	result := &Result{Success: delivered, MessageID: sms.MessageID, Provider: c.provider}
	if !delivered {
		result.ErrorCode = "delivery_failed"
		result.ErrorMessage = "Order confirmation could not be delivered"
	}
	return result, nil
}

func (c *composer) sendPaymentLink(ctx context.Context, ch channels, req PaymentLinkRequest) (*PaymentLinkResult, error) {
	if c.payments == nil {
		return &PaymentLinkResult{ErrorCode: "not_configured", ErrorMessage: "No payment provider configured"}, nil
	}

	orderID := req.OrderID
	session, err := c.payments.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		OrderID:       orderID,
		Amount:        req.Amount,
		Description:   fmt.Sprintf("Order #%d - %s", orderID, c.restaurant),
		Summary:       req.Summary,
		CustomerEmail: req.Email,
		SuccessURL:    fmt.Sprintf("%s/order/success?order_id=%d", strings.TrimRight(c.baseURL, "/"), orderID),
		CancelURL:     fmt.Sprintf("%s/order/cancel?order_id=%d", strings.TrimRight(c.baseURL, "/"), orderID),
	})
	if err != nil {
		return nil, err
	}

	if !session.Success {
		c.logger.Warn("Checkout session rejected", "orderID", orderID, "code", session.ErrorCode)
		return &PaymentLinkResult{ErrorCode: session.ErrorCode, ErrorMessage: session.ErrorMessage}, nil
	}

	sms, err := ch.SendSMS(ctx, req.Phone, PaymentLinkText(orderID, req.Amount, session.URL, c.restaurant))
	if err != nil {
		return nil, err
	}

	delivered := sms.Success

	if req.Email != "" {
		html, err := render(paymentLinkHTML, map[string]interface{}{
			"OrderID": orderID,
			"Total":   req.Amount.String(),
			"URL":     session.URL,
		})
		if err != nil {
			return nil, err
		}

		email, err := ch.SendEmail(ctx, Email{
			To:      req.Email,
			Subject: fmt.Sprintf("Complete Your Payment - Order #%d", orderID),
			HTML:    html,
		})
		if err != nil {
			c.logger.Warn("Payment link email failed", "orderID", orderID, "error", err)
		} else {
			delivered = delivered || email.Success
		}
	}

	result := &PaymentLinkResult{
		Success:           delivered,
		PaymentURL:        session.URL,
		CheckoutSessionID: session.SessionID,
	}
	if !delivered {
		result.ErrorCode = "delivery_failed"
		result.ErrorMessage = "Payment link could not be delivered"
		return result, nil
	}

	c.logger.Info("Payment link sent", "orderID", orderID, "sessionID", session.SessionID)
	return result, nil
}
