package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vaidashi/phone-order-api/internal/clients"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

const (
	stripeAPIVersion = "2023-10-16"
	// DefaultWebhookTolerance bounds the age of a signed webhook
	DefaultWebhookTolerance = 5 * time.Minute
)

// StripeConfig configures the Stripe backend
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Currency      string
	Timeout       time.Duration
	Tolerance     time.Duration
}

// Stripe talks to the Stripe REST API
type Stripe struct {
	client        *clients.APIClient
	secretKey     string
	webhookSecret string
	currency      string
	tolerance     time.Duration
	now           func() time.Time
	logger        logger.Logger
}

type stripeError struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

type stripeIntent struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
	LatestCharge string `json:"latest_charge"`
}

type stripeSession struct {
	ID       string            `json:"id"`
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata"`
}

type stripeRefund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// NewStripe creates the Stripe backend
func NewStripe(cfg StripeConfig, logger logger.Logger) *Stripe {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultWebhookTolerance
	}

	client := clients.NewAPIClient(clients.Config{
		Name:    "stripe",
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}, logger)

	logger.Info("Stripe payment provider initialized", "apiVersion", stripeAPIVersion)

	return &Stripe{
		client:        client,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		currency:      strings.ToLower(cfg.Currency),
		tolerance:     cfg.Tolerance,
		now:           time.Now,
		logger:        logger,
	}
}

func (s *Stripe) Name() string {
	return "stripe"
}

// Breaker exposes the circuit breaker guarding the Stripe API
func (s *Stripe) Breaker() *circuitbreaker.CircuitBreaker {
	return s.client.Breaker()
}

func (s *Stripe) post(ctx context.Context, path string, form url.Values) (*clients.Response, error) {
	return s.client.Do(ctx, clients.Request{
		Method: http.MethodPost,
		Path:   path,
		Form:   form,
		Header: s.headers(),
	})
}

func (s *Stripe) headers() http.Header {
	return http.Header{
		"Authorization":  {"Bearer " + s.secretKey},
		"Stripe-Version": {stripeAPIVersion},
	}
}

// classify maps a non-2xx Stripe response to an error code and message
func classify(resp *clients.Response) (string, string) {
	var body stripeError
	_ = resp.Decode(&body)

	switch resp.StatusCode {
	case http.StatusPaymentRequired:
		code := body.Error.DeclineCode
		if code == "" {
			code = body.Error.Code
		}
		if code == "" {
			code = "card_declined"
		}
		return code, body.Error.Message
	case http.StatusBadRequest, http.StatusNotFound:
		return "invalid_request", body.Error.Message
	case http.StatusUnauthorized, http.StatusForbidden:
		return "authentication_error", "Payment service configuration error"
	}
	return "stripe_error", "Payment processing error"
}

func (s *Stripe) ProcessPayment(ctx context.Context, req ChargeRequest) (*Result, error) {
	currency := s.currencyOr(req.Currency)

	if req.Amount <= 0 {
		return &Result{Success: false, ErrorCode: "invalid_amount", ErrorMessage: "Amount must be greater than 0", Currency: currency}, nil
	}

	description := req.Description
	if description == "" {
		description = "Restaurant Order"
	}

	form := url.Values{
		"amount":                  {strconv.FormatInt(req.Amount.Cents(), 10)},
		"currency":                {currency},
		"description":             {description},
		"metadata[customer_name]": {req.CustomerName},
		"metadata[source]":        {"ai_restaurant_system"},
	}
	if req.CustomerEmail != "" {
		form.Set("receipt_email", req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	return s.createIntent(ctx, form, currency)
}

func (s *Stripe) CreatePaymentIntent(ctx context.Context, amount models.Money, currency string, metadata map[string]string) (*Result, error) {
	currency = s.currencyOr(currency)

	if amount <= 0 {
		return &Result{Success: false, ErrorCode: "invalid_amount", ErrorMessage: "Amount must be greater than 0", Currency: currency}, nil
	}

	form := url.Values{
		"amount":                             {strconv.FormatInt(amount.Cents(), 10)},
		"currency":                           {currency},
		"automatic_payment_methods[enabled]": {"true"},
	}
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	return s.createIntent(ctx, form, currency)
}

func (s *Stripe) createIntent(ctx context.Context, form url.Values, currency string) (*Result, error) {
	start := time.Now()

	resp, err := s.post(ctx, "/v1/payment_intents", form)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start).Milliseconds()

	if !resp.OK() {
		code, message := classify(resp)
		s.logger.Warn("Stripe payment intent rejected", "status", resp.StatusCode, "code", code)
		return &Result{Success: false, Currency: currency, ErrorCode: code, ErrorMessage: message, ResponseTimeMs: elapsed}, nil
	}

	var intent stripeIntent
	if err := resp.Decode(&intent); err != nil {
		return nil, err
	}

	s.logger.Info("Stripe payment intent created", "paymentIntentID", intent.ID, "status", intent.Status)

	return &Result{
		Success:         true,
		PaymentIntentID: intent.ID,
		ChargeID:        intent.LatestCharge,
		Amount:          models.Money(intent.Amount),
		Currency:        intent.Currency,
		ResponseTimeMs:  elapsed,
		Metadata: map[string]string{
			"status":        intent.Status,
			"client_secret": intent.ClientSecret,
		},
	}, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Amount <= 0 {
		return &CheckoutSession{Success: false, ErrorCode: "invalid_amount", ErrorMessage: "Amount must be greater than 0"}, nil
	}

	orderID := strconv.FormatInt(req.OrderID, 10)
	summary := req.Summary
	if len(summary) > 500 {
		summary = summary[:500]
	}

	form := url.Values{
		"mode":                                          {"payment"},
		"payment_method_types[0]":                       {"card"},
		"line_items[0][quantity]":                       {"1"},
		"line_items[0][price_data][currency]":           {s.currencyOr(req.Currency)},
		"line_items[0][price_data][unit_amount]":        {strconv.FormatInt(req.Amount.Cents(), 10)},
		"line_items[0][price_data][product_data][name]": {req.Description},
		"success_url":                                   {req.SuccessURL},
		"cancel_url":                                    {req.CancelURL},
		"metadata[order_id]":                            {orderID},
		"payment_intent_data[metadata][order_id]":       {orderID},
	}
	if summary != "" {
		form.Set("line_items[0][price_data][product_data][description]", summary)
	}
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}

	resp, err := s.post(ctx, "/v1/checkout/sessions", form)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		code, message := classify(resp)
		s.logger.Warn("Stripe checkout session rejected", "status", resp.StatusCode, "code", code, "orderID", req.OrderID)
		return &CheckoutSession{Success: false, ErrorCode: code, ErrorMessage: message}, nil
	}

	var session stripeSession
	if err := resp.Decode(&session); err != nil {
		return nil, err
	}

	return &CheckoutSession{
		Success:   true,
		SessionID: session.ID,
		URL:       session.URL,
		Metadata:  session.Metadata,
	}, nil
}

func (s *Stripe) Refund(ctx context.Context, paymentIntentID string, amount *models.Money, reason string) (*RefundResult, error) {
	form := url.Values{"payment_intent": {paymentIntentID}}
	if amount != nil {
		form.Set("amount", strconv.FormatInt(amount.Cents(), 10))
	}
	if reason != "" {
		form.Set("reason", reason)
	}

	resp, err := s.post(ctx, "/v1/refunds", form)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		_, message := classify(resp)
		return &RefundResult{Success: false, Status: "failed", ErrorMessage: message}, nil
	}

	var refund stripeRefund
	if err := resp.Decode(&refund); err != nil {
		return nil, err
	}

	s.logger.Info("Stripe refund processed", "refundID", refund.ID, "status", refund.Status)

	return &RefundResult{
		Success:  true,
		RefundID: refund.ID,
		Amount:   models.Money(refund.Amount),
		Status:   refund.Status,
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header. Every event is refused while no secret is configured.
func (s *Stripe) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if s.webhookSecret == "" {
		s.logger.Error("Stripe webhook secret not configured, rejecting event")
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	if err := VerifySignature(payload, signature, s.webhookSecret, s.tolerance, s.now()); err != nil {
		return nil, err
	}

	event, err := parseEvent(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

func (s *Stripe) HealthCheck(ctx context.Context) bool {
	resp, err := s.client.Do(ctx, clients.Request{
		Method: http.MethodGet,
		Path:   "/v1/account",
		Header: s.headers(),
	})
	if err != nil {
		s.logger.Error("Stripe health check failed", "error", err)
		return false
	}
	return resp.OK()
}

func (s *Stripe) currencyOr(currency string) string {
	if currency == "" {
		return s.currency
	}
	return strings.ToLower(currency)
}

// SignPayload builds a Stripe-Signature header value for payload at t
func SignPayload(payload []byte, secret string, t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeSignature(ts, payload, secret))
}

// VerifySignature checks a Stripe-Signature header of the form t=<unix>,v1=<hex>[,v1=<hex>]
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}

	if tolerance > 0 && now.Sub(time.Unix(unix, 0)) > tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := computeSignature(timestamp, payload, secret)

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}

	return fmt.Errorf("%w: no matching signature", ErrInvalidSignature)
}

func computeSignature(timestamp string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
