package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment modes. Development runs against mock providers.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type Config struct {
	Port       int
	LogLevel   string
	Env        string
	AppBaseURL string

	Restaurant RestaurantConfig
	DB         DBConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Stripe     StripeConfig
	Google     GoogleConfig
	Vapi       VapiConfig
	Twilio     TwilioConfig
	Email      EmailConfig
	Mock       MockConfig
	Ledger     LedgerConfig
	Outbox     OutboxConfig
	HTTPClient HTTPClientConfig
	RateLimit  RateLimitConfig
}

// RestaurantConfig holds the business settings used when pricing and talking to callers
type RestaurantConfig struct {
	Name                     string
	Phone                    string
	TaxRate                  float64
	DeliveryFee              float64
	EstimatedDeliveryMinutes int
	DeliveryRadiusMiles      float64
	ValidZipCodes            []string
	HumanTransferNumber      string
	Currency                 string
}

// DBConfig holds the database configuration
type DBConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig holds the optional Redis connection used for the distributed ledger lock
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// KafkaConfig holds the kitchen topic settings. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers            []string
	KitchenTopic       string
	KitchenStatusTopic string
	ConsumerGroup      string
}

// Enabled reports whether Kafka brokers were configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
}

type GoogleConfig struct {
	MapsAPIKey string
	BaseURL    string
	CacheSize  int
}

type VapiConfig struct {
	APIKey        string
	WebhookSecret string
	AssistantID   string
}

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	BaseURL     string
}

// EmailConfig configures SMTP delivery. The defaults target the SendGrid relay.
type EmailConfig struct {
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	APIKey    string
	FromEmail string
}

// MockConfig tunes the simulated providers used in development
type MockConfig struct {
	PaymentFailureRate      float64
	GeoFailureRate          float64
	NotificationFailureRate float64
	LatencyEnabled          bool
}

type LedgerConfig struct {
	DataDir     string
	LockTimeout time.Duration
}

type OutboxConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	DLQInterval     time.Duration
	ClaimLease      time.Duration
}

type HTTPClientConfig struct {
	Timeout time.Duration
}

// RateLimitConfig sizes the global adaptive bucket and the per-IP buckets
type RateLimitConfig struct {
	GlobalMaxTokens   float64
	GlobalMaxRate     float64
	GlobalMinRate     float64
	LoadThreshold     float64
	IPMaxTokens       float64
	IPRefillRate      float64
	WebhookMaxTokens  float64
	WebhookRefillRate float64
	TrustForwardedFor bool
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}

	// bare integers are seconds
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

const defaultZipCodes = "10001,10002,10003,10004,10005,10006,10007,10008,10009,10010,10011,10012,10013,10014,10016,10017,10018,10019,10020,10021"

// Load reads the configuration from environment variables and returns a Config struct.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return load()
}

type loader struct {
	err error
}

func (l *loader) int(key string, def int) int {
	v, err := getEnvInt(key, def)
	if err != nil && l.err == nil {
		l.err = err
	}
	return v
}

func (l *loader) float(key string, def float64) float64 {
	v, err := getEnvFloat(key, def)
	if err != nil && l.err == nil {
		l.err = err
	}
	return v
}

func (l *loader) bool(key string, def bool) bool {
	v, err := getEnvBool(key, def)
	if err != nil && l.err == nil {
		l.err = err
	}
	return v
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v, err := getEnvDuration(key, def)
	if err != nil && l.err == nil {
		l.err = err
	}
	return v
}

func load() (*Config, error) {
	var l loader

	env := strings.ToLower(getEnv("ENV_MODE", EnvDevelopment))

	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return nil, fmt.Errorf("invalid ENV_MODE %q: must be one of development, staging, production", env)
	}

	port := l.int("PORT", 8001)

	cfg := &Config{
		Port:       port,
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Env:        env,
		AppBaseURL: strings.TrimRight(getEnv("APP_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		Restaurant: RestaurantConfig{
			Name:                     getEnv("RESTAURANT_NAME", "AI Pizza Palace"),
			Phone:                    getEnv("RESTAURANT_PHONE", "+1-555-123-4567"),
			TaxRate:                  l.float("TAX_RATE", 0.08875),
			DeliveryFee:              l.float("DELIVERY_FEE", 5.99),
			EstimatedDeliveryMinutes: l.int("ESTIMATED_DELIVERY_MINUTES", 40),
			DeliveryRadiusMiles:      l.float("DELIVERY_RADIUS_MILES", 5.0),
			ValidZipCodes:            splitList(getEnv("VALID_ZIP_CODES", defaultZipCodes)),
			HumanTransferNumber:      getEnv("HUMAN_TRANSFER_NUMBER", ""),
			Currency:                 strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
		},
		DB: DBConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     l.int("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "restaurant_orders"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       l.int("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(getEnv("KAFKA_BROKERS", "")),
			KitchenTopic:       getEnv("KAFKA_KITCHEN_TOPIC", "kitchen.orders"),
			KitchenStatusTopic: getEnv("KAFKA_KITCHEN_STATUS_TOPIC", "kitchen.status"),
			ConsumerGroup:      getEnv("KAFKA_CONSUMER_GROUP", "phone-order-api"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("STRIPE_API_BASE", "https://api.stripe.com"),
		},
		Google: GoogleConfig{
			MapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
			BaseURL:    getEnv("GOOGLE_MAPS_API_BASE", "https://maps.googleapis.com"),
			CacheSize:  l.int("GEOCODE_CACHE_SIZE", 1024),
		},
		Vapi: VapiConfig{
			APIKey:        getEnv("VAPI_API_KEY", ""),
			WebhookSecret: getEnv("VAPI_SECRET", getEnv("VAPI_WEBHOOK_SECRET", "")),
			AssistantID:   getEnv("VAPI_ASSISTANT_ID", ""),
		},
		Twilio: TwilioConfig{
			AccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
			PhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
			BaseURL:     getEnv("TWILIO_API_BASE", "https://api.twilio.com"),
		},
		Email: EmailConfig{
			SMTPHost:  getEnv("SMTP_HOST", "smtp.sendgrid.net"),
			SMTPPort:  l.int("SMTP_PORT", 587),
			SMTPUser:  getEnv("SMTP_USER", "apikey"),
			APIKey:    getEnv("SENDGRID_API_KEY", ""),
			FromEmail: getEnv("SENDGRID_FROM_EMAIL", "orders@restaurant.com"),
		},
		Mock: MockConfig{
			PaymentFailureRate:      l.float("MOCK_PAYMENT_FAILURE_RATE", 0.10),
			GeoFailureRate:          l.float("MOCK_GEO_FAILURE_RATE", 0.05),
			NotificationFailureRate: l.float("MOCK_NOTIFICATION_FAILURE_RATE", 0.05),
			LatencyEnabled:          l.bool("MOCK_LATENCY_ENABLED", true),
		},
		Ledger: LedgerConfig{
			DataDir:     getEnv("DATA_DIRECTORY", "data"),
			LockTimeout: l.duration("LEDGER_LOCK_TIMEOUT", 30*time.Second),
		},
		Outbox: OutboxConfig{
			PollingInterval: l.duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:       l.int("OUTBOX_BATCH_SIZE", 10),
			MaxRetries:      l.int("OUTBOX_MAX_RETRIES", 3),
			DLQInterval:     l.duration("DLQ_POLL_INTERVAL", 30*time.Second),
			ClaimLease:      l.duration("OUTBOX_CLAIM_LEASE", 5*time.Minute),
		},
		HTTPClient: HTTPClientConfig{
			Timeout: l.duration("PROVIDER_HTTP_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			GlobalMaxTokens:   l.float("RATE_LIMIT_GLOBAL_TOKENS", 200),
			GlobalMaxRate:     l.float("RATE_LIMIT_GLOBAL_MAX_RATE", 100),
			GlobalMinRate:     l.float("RATE_LIMIT_GLOBAL_MIN_RATE", 20),
			LoadThreshold:     l.float("RATE_LIMIT_LOAD_THRESHOLD", 0.7),
			IPMaxTokens:       l.float("RATE_LIMIT_IP_TOKENS", 30),
			IPRefillRate:      l.float("RATE_LIMIT_IP_RATE", 10),
			WebhookMaxTokens:  l.float("RATE_LIMIT_WEBHOOK_TOKENS", 100),
			WebhookRefillRate: l.float("RATE_LIMIT_WEBHOOK_RATE", 50),
			TrustForwardedFor: l.bool("TRUST_X_FORWARDED_FOR", false),
		},
	}

	if l.err != nil {
		return nil, l.err
	}

	return cfg, nil
}

// IsDevelopment reports whether mock providers should be used
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// UseRealServices reports whether real provider backends should be used
func (c *Config) UseRealServices() bool {
	return c.Env == EnvStaging || c.Env == EnvProduction
}

// MissingProductionKeys lists the credentials required by the real providers that are not set
func (c *Config) MissingProductionKeys() []string {
	if !c.UseRealServices() {
		return nil
	}

	var missing []string

	if c.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.Google.MapsAPIKey == "" {
		missing = append(missing, "GOOGLE_MAPS_API_KEY")
	}
	if c.Vapi.APIKey == "" {
		missing = append(missing, "VAPI_API_KEY")
	}

	return missing
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
