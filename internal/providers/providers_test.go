package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/internal/config"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:        env,
		AppBaseURL: "http://localhost:8001",
		Restaurant: config.RestaurantConfig{
			Name:          "AI Pizza Palace",
			Currency:      "usd",
			ValidZipCodes: []string{"10001"},
		},
		Stripe:     config.StripeConfig{BaseURL: "https://api.stripe.com"},
		Google:     config.GoogleConfig{BaseURL: "https://maps.googleapis.com", CacheSize: 16},
		Twilio:     config.TwilioConfig{BaseURL: "https://api.twilio.com"},
		HTTPClient: config.HTTPClientConfig{Timeout: time.Second},
	}
}

func TestNew_DevelopmentUsesMocks(t *testing.T) {
	set, err := New(testConfig(config.EnvDevelopment), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "mock", set.Payment.Name())
	assert.Equal(t, "mock", set.Geo.Name())
	assert.Equal(t, "mock", set.Notification.Name())
	assert.Equal(t, "mock", set.Mode())
	assert.Empty(t, set.Breakers())
	assert.True(t, set.Geo.IsInDeliveryZone("10001"))
}

func TestNew_ProductionListsAllMissingKeys(t *testing.T) {
	_, err := New(testConfig(config.EnvProduction), logger.NewNop())
	require.Error(t, err)

	assert.ErrorContains(t, err, "STRIPE_SECRET_KEY")
	assert.ErrorContains(t, err, "STRIPE_WEBHOOK_SECRET")
	assert.ErrorContains(t, err, "GOOGLE_MAPS_API_KEY")
	assert.ErrorContains(t, err, "VAPI_API_KEY")
}

func TestNew_StagingUsesRealBackends(t *testing.T) {
	cfg := testConfig(config.EnvStaging)
	cfg.Stripe.SecretKey = "sk_test_123"
	cfg.Stripe.WebhookSecret = "whsec_test"
	cfg.Google.MapsAPIKey = "maps"
	cfg.Vapi.APIKey = "vapi"
	cfg.Twilio = config.TwilioConfig{AccountSID: "AC1", AuthToken: "t", PhoneNumber: "+1555", BaseURL: "https://api.twilio.com"}

	set, err := New(cfg, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "stripe", set.Payment.Name())
	assert.Equal(t, "google", set.Geo.Name())
	assert.Equal(t, "real", set.Notification.Name())
	assert.Equal(t, "real", set.Mode())

	var names []string
	for _, b := range set.Breakers() {
		names = append(names, b.Name())
	}
	assert.ElementsMatch(t, []string{"stripe", "google_maps", "twilio"}, names)
}
