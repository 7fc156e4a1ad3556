// Package providers selects the payment, geo and notification backends for the configured environment.
package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/vaidashi/phone-order-api/internal/config"
	"github.com/vaidashi/phone-order-api/internal/providers/geo"
	"github.com/vaidashi/phone-order-api/internal/providers/notification"
	"github.com/vaidashi/phone-order-api/internal/providers/payment"
	"github.com/vaidashi/phone-order-api/internal/providers/sim"
	"github.com/vaidashi/phone-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// Set is the resolved provider trio. It is read-only after startup.
type Set struct {
	Payment      payment.Provider
	Geo          geo.Provider
	Notification notification.Provider
}

type breakerSource interface {
	Breaker() *circuitbreaker.CircuitBreaker
}

// Breakers returns the circuit breakers of the real backends
func (s *Set) Breakers() []*circuitbreaker.CircuitBreaker {
	var out []*circuitbreaker.CircuitBreaker

	for _, p := range []interface{}{s.Payment, s.Geo, s.Notification} {
		if src, ok := p.(breakerSource); ok {
			if b := src.Breaker(); b != nil {
				out = append(out, b)
			}
		}
	}
	return out
}

// Mode returns "mock" or "real"
func (s *Set) Mode() string {
	if s.Payment.Name() == "mock" {
		return "mock"
	}
	return "real"
}

// New builds the provider set once at startup
func New(cfg *config.Config, logger logger.Logger) (*Set, error) {
	zone := geo.NewZone(cfg.Restaurant.ValidZipCodes)

	if !cfg.UseRealServices() {
		return newMocks(cfg, zone, logger), nil
	}

	if missing := cfg.MissingProductionKeys(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration for %s mode: %s", cfg.Env, strings.Join(missing, ", "))
	}

	return newReal(cfg, zone, logger)
}

func mockConfig(cfg *config.Config, failureRate float64, min, max time.Duration) sim.Config {
	c := sim.Config{FailureRate: failureRate}
	if cfg.Mock.LatencyEnabled {
		c.MinLatency = min
		c.MaxLatency = max
	}
	return c
}

func newMocks(cfg *config.Config, zone geo.Zone, logger logger.Logger) *Set {
	payments := payment.NewMock(
		mockConfig(cfg, cfg.Mock.PaymentFailureRate, 200*time.Millisecond, 800*time.Millisecond),
		cfg.Restaurant.Currency, logger)

	set := &Set{
		Payment: payments,
		Geo: geo.NewMock(
			mockConfig(cfg, cfg.Mock.GeoFailureRate, 100*time.Millisecond, 500*time.Millisecond),
			zone, logger),
		Notification: notification.NewMock(
			mockConfig(cfg, cfg.Mock.NotificationFailureRate, 50*time.Millisecond, 200*time.Millisecond),
			cfg.Restaurant.Name, cfg.AppBaseURL, payments, logger),
	}

	logger.Info("Using mock providers", "env", cfg.Env)
	return set
}

func newReal(cfg *config.Config, zone geo.Zone, logger logger.Logger) (*Set, error) {
	payments := payment.NewStripe(payment.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		BaseURL:       cfg.Stripe.BaseURL,
		Currency:      cfg.Restaurant.Currency,
		Timeout:       cfg.HTTPClient.Timeout,
	}, logger)

	geocoder, err := geo.NewGoogle(geo.GoogleConfig{
		APIKey:    cfg.Google.MapsAPIKey,
		BaseURL:   cfg.Google.BaseURL,
		Timeout:   cfg.HTTPClient.Timeout,
		CacheSize: cfg.Google.CacheSize,
	}, zone, logger)
	if err != nil {
		return nil, err
	}

	notifier := notification.NewReal(notification.RealConfig{
		Restaurant: cfg.Restaurant.Name,
		BaseURL:    cfg.AppBaseURL,
		Twilio: notification.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.PhoneNumber,
			BaseURL:    cfg.Twilio.BaseURL,
			Timeout:    cfg.HTTPClient.Timeout,
		},
		SMTP: notification.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			User:     cfg.Email.SMTPUser,
			Password: cfg.Email.APIKey,
			From:     cfg.Email.FromEmail,
		},
	}, payments, logger)

	logger.Info("Using real providers", "env", cfg.Env)

	return &Set{Payment: payments, Geo: geocoder, Notification: notifier}, nil
}
