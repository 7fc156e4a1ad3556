package notification

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gomail "gopkg.in/gomail.v2"

	"github.com/vaidashi/phone-order-api/internal/clients"
	"github.com/vaidashi/phone-order-api/internal/providers/payment"
	"github.com/vaidashi/phone-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// TwilioConfig configures the SMS channel
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Timeout    time.Duration
}

func (c TwilioConfig) configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// SMTPConfig configures the email channel
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (c SMTPConfig) configured() bool {
	return c.Host != "" && c.Password != "" && c.From != ""
}

// Mailer sends composed messages. *gomail.Dialer satisfies it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// RealConfig configures the real notification backend
type RealConfig struct {
	Restaurant string
	BaseURL    string
	Twilio     TwilioConfig
	SMTP       SMTPConfig
}

// Real sends SMS through Twilio and email over SMTP
type Real struct {
	composer
	twilio *clients.APIClient
	sms    TwilioConfig
	smtp   SMTPConfig
	mailer Mailer
}

type twilioMessage struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewReal creates the real notification backend
func NewReal(cfg RealConfig, payments payment.Provider, logger logger.Logger) *Real {
	r := &Real{
		composer: composer{
			restaurant: cfg.Restaurant,
			baseURL:    cfg.BaseURL,
			payments:   payments,
			provider:   "real",
			logger:     logger,
		},
		sms:  cfg.Twilio,
		smtp: cfg.SMTP,
	}

	if cfg.Twilio.configured() {
		r.twilio = clients.NewAPIClient(clients.Config{
			Name:    "twilio",
			BaseURL: cfg.Twilio.BaseURL,
			Timeout: cfg.Twilio.Timeout,
		}, logger)
	} else {
		logger.Warn("Twilio not configured, SMS disabled")
	}

	if cfg.SMTP.configured() {
		r.mailer = gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password)
	} else {
		logger.Warn("SMTP not configured, email disabled")
	}

	logger.Info("Real notification provider initialized",
		"sms", r.twilio != nil,
		"email", r.mailer != nil)

	return r
}

// WithMailer replaces the SMTP dialer
func (r *Real) WithMailer(m Mailer) *Real {
	r.mailer = m
	return r
}

func (r *Real) Name() string {
	return "real"
}

// Breaker exposes the circuit breaker guarding Twilio, nil when SMS is disabled
func (r *Real) Breaker() *circuitbreaker.CircuitBreaker {
	if r.twilio == nil {
		return nil
	}
	return r.twilio.Breaker()
}

func (r *Real) SendSMS(ctx context.Context, to, body string) (*Result, error) {
	if r.twilio == nil {
		return &Result{Provider: "twilio", ErrorCode: "not_configured", ErrorMessage: "SMS not configured"}, nil
	}

	resp, err := r.twilio.Do(ctx, clients.Request{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", r.sms.AccountSID),
		Form:     url.Values{"To": {to}, "From": {r.sms.From}, "Body": {body}},
		Username: r.sms.AccountSID,
		Password: r.sms.AuthToken,
	})
	if err != nil {
		return nil, err
	}

	var msg twilioMessage
	_ = resp.Decode(&msg)

	if !resp.OK() {
		code := "sms_failed"
		// 21211: invalid 'To' number
		if msg.Code == 21211 {
			code = "invalid_phone"
		}
		r.logger.Error("Twilio rejected SMS", "to", to, "status", resp.StatusCode, "code", msg.Code)
		return &Result{Provider: "twilio", ErrorCode: code, ErrorMessage: msg.Message}, nil
	}

	r.logger.Info("SMS sent", "to", to, "sid", msg.SID)
	return &Result{Success: true, MessageID: msg.SID, Provider: "twilio"}, nil
}

func (r *Real) SendEmail(ctx context.Context, email Email) (*Result, error) {
	if r.mailer == nil {
		return &Result{Provider: "smtp", ErrorCode: "not_configured", ErrorMessage: "Email not configured"}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", r.smtp.From)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	if email.Text != "" {
		m.SetBody("text/plain", email.Text)
		m.AddAlternative("text/html", email.HTML)
	} else {
		m.SetBody("text/html", email.HTML)
	}

	if err := r.mailer.DialAndSend(m); err != nil {
		r.logger.Error("Email delivery failed", "to", email.To, "error", err)
		return &Result{Provider: "smtp", ErrorCode: "email_failed", ErrorMessage: err.Error()}, nil
	}

	r.logger.Info("Email sent", "to", email.To, "subject", email.Subject)
	return &Result{Success: true, Provider: "smtp"}, nil
}

func (r *Real) SendOrderConfirmation(ctx context.Context, c Confirmation) (*Result, error) {
	return r.sendOrderConfirmation(ctx, r, c)
}

func (r *Real) SendPaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLinkResult, error) {
	return r.sendPaymentLink(ctx, r, req)
}

// HealthCheck verifies the Twilio account when SMS is enabled
func (r *Real) HealthCheck(ctx context.Context) bool {
	if r.twilio == nil {
		return r.mailer != nil
	}

	resp, err := r.twilio.Do(ctx, clients.Request{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("/2010-04-01/Accounts/%s.json", r.sms.AccountSID),
		Username: r.sms.AccountSID,
		Password: r.sms.AuthToken,
	})
	if err != nil {
		r.logger.Error("Twilio health check failed", "error", err)
		return false
	}
	return resp.OK()
}
