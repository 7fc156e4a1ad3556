package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vaidashi/phone-order-api/internal/api"
	"github.com/vaidashi/phone-order-api/internal/config"
	"github.com/vaidashi/phone-order-api/internal/conversation"
	"github.com/vaidashi/phone-order-api/internal/database"
	"github.com/vaidashi/phone-order-api/internal/handlers"
	"github.com/vaidashi/phone-order-api/internal/ledger"
	"github.com/vaidashi/phone-order-api/internal/menu"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/outbox"
	"github.com/vaidashi/phone-order-api/internal/pricing"
	"github.com/vaidashi/phone-order-api/internal/providers"
	"github.com/vaidashi/phone-order-api/internal/repository"
	"github.com/vaidashi/phone-order-api/internal/service"
	"github.com/vaidashi/phone-order-api/pkg/kafka"
	"github.com/vaidashi/phone-order-api/pkg/lock"
	"github.com/vaidashi/phone-order-api/pkg/logger"
	"github.com/vaidashi/phone-order-api/pkg/middleware"
)

func main() {
	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.NewLogger(cfg.LogLevel, cfg.Env)
	defer logger.Sync(l)
	l.Info("Starting phone order API...", "env", cfg.Env, "restaurant", cfg.Restaurant.Name)

	db, err := database.New(cfg, l)
	if err != nil {
		l.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.RunMigrations(); err != nil {
		l.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	orderRepo := repository.NewOrderRepository(db, l)
	callLogRepo := repository.NewCallLogRepository(db, l)
	outboxRepo := repository.NewOutboxRepository(db, l)
	outboxRepo.SetClaimLease(cfg.Outbox.ClaimLease)
	dlqRepo := repository.NewDeadLetterRepository(db, l)
	paymentEventRepo := repository.NewPaymentEventRepository(db, l)

	provs, err := providers.New(cfg, l)
	if err != nil {
		l.Error("Failed to configure providers", "error", err)
		os.Exit(1)
	}
	l.Info("Providers configured", "mode", provs.Mode())

	// Ledger locks are shared between instances when Redis is configured
	var redisClient *redis.Client
	var ordersLock, callLogsLock lock.Locker

	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ordersLock = lock.NewRedis(redisClient, lock.RedisConfig{Key: "ledger:orders", Timeout: cfg.Ledger.LockTimeout}, l)
		callLogsLock = lock.NewRedis(redisClient, lock.RedisConfig{Key: "ledger:call_logs", Timeout: cfg.Ledger.LockTimeout}, l)
	} else {
		ordersLock = lock.NewLocal(cfg.Ledger.LockTimeout)
		callLogsLock = lock.NewLocal(cfg.Ledger.LockTimeout)
	}

	ledgerWriter, err := ledger.NewWriter(cfg.Ledger.DataDir, ordersLock, callLogsLock, l)
	if err != nil {
		l.Error("Failed to open ledger", "error", err)
		os.Exit(1)
	}

	var producer *kafka.Producer
	var publisher outbox.Publisher

	if cfg.Kafka.Enabled() {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, l)
		if err != nil {
			l.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		publisher = producer
	} else {
		l.Warn("Kafka brokers not configured, kitchen tickets are not published")
	}

	calculator := pricing.NewCalculator(cfg.Restaurant.TaxRate, cfg.Restaurant.DeliveryFee)

	orderService := service.NewOrderService(service.OrderServiceConfig{
		Orders:        orderRepo,
		CallLogs:      callLogRepo,
		Outbox:        outboxRepo,
		PaymentEvents: paymentEventRepo,
		Payment:       provs.Payment,
		Geo:           provs.Geo,
		Notifier:      provs.Notification,
		Pricing:       calculator,
		Currency:      cfg.Restaurant.Currency,
	}, l)
	callLogService := service.NewCallLogService(callLogRepo, orderRepo, outboxRepo, l)

	machine := conversation.New(conversation.Deps{
		Geo:      provs.Geo,
		Notifier: provs.Notification,
		Orders:   orderService,
		CallLogs: callLogService,
		Catalog:  menu.Default(),
		Pricing:  calculator,
		Settings: conversation.Settings{
			Restaurant:          cfg.Restaurant.Name,
			DeliveryMinutes:     cfg.Restaurant.EstimatedDeliveryMinutes,
			HumanTransferNumber: cfg.Restaurant.HumanTransferNumber,
		},
	}, l)

	exportHandler := outbox.NewExportHandler(ledgerWriter, orderRepo, callLogRepo, l)
	kitchenHandler := outbox.NewKitchenHandler(orderRepo, publisher, cfg.Kafka.KitchenTopic, cfg.Restaurant.EstimatedDeliveryMinutes, l)

	outboxProcessor := outbox.NewProcessor(outboxRepo, dlqRepo, outbox.ProcessorConfig{
		PollingInterval: cfg.Outbox.PollingInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
	}, l)

	dlqProcessor := outbox.NewDeadLetterProcessor(dlqRepo, l, &outbox.DeadLetterProcessorConfig{
		PollingInterval: cfg.Outbox.DLQInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
	})

	for _, p := range []interface {
		RegisterHandler(string, outbox.MessageHandler)
	}{outboxProcessor, dlqProcessor} {
		p.RegisterHandler(models.EventOrderExport, exportHandler)
		p.RegisterHandler(models.EventCallLogExport, exportHandler)
		p.RegisterHandler(models.EventOrderKitchenSend, kitchenHandler)
	}

	dlqService := service.NewDeadLetterService(dlqRepo, dlqProcessor, l)

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled() && cfg.Kafka.KitchenStatusTopic != "" {
		consumer, err = kafka.NewConsumer(&kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topics:        []string{cfg.Kafka.KitchenStatusTopic},
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, l)
		if err != nil {
			l.Error("Failed to create Kafka consumer", "error", err)
			os.Exit(1)
		}
		consumer.RegisterHandler(cfg.Kafka.KitchenStatusTopic, handlers.NewKitchenStatusHandler(orderService, l))
	}

	rateLimiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
		GlobalMaxTokens:   cfg.RateLimit.GlobalMaxTokens,
		GlobalMaxRate:     cfg.RateLimit.GlobalMaxRate,
		GlobalMinRate:     cfg.RateLimit.GlobalMinRate,
		GlobalThreshold:   cfg.RateLimit.LoadThreshold,
		IPMaxTokens:       cfg.RateLimit.IPMaxTokens,
		IPRefillRate:      cfg.RateLimit.IPRefillRate,
		TrustForwardedFor: cfg.RateLimit.TrustForwardedFor,
	}, l)
	endpointLimiter := middleware.NewEndpointRateLimiterMiddleware(cfg.RateLimit.WebhookMaxTokens, cfg.RateLimit.WebhookRefillRate, l)
	degradation := middleware.NewGracefulDegradation([]string{"/api/v1/admin", "/api/v1/dlq"}, l)

	server := api.NewServer(api.Options{
		Port:            cfg.Port,
		Env:             cfg.Env,
		Development:     cfg.IsDevelopment(),
		ProviderMode:    provs.Mode(),
		VapiSecret:      cfg.Vapi.WebhookSecret,
		DeliveryMinutes: cfg.Restaurant.EstimatedDeliveryMinutes,
	}, api.Deps{
		Orders:          orderService,
		CallLogs:        callLogService,
		DeadLetters:     dlqService,
		Outbox:          outboxRepo,
		Voice:           machine,
		Payments:        provs.Payment,
		HealthChecks:    healthChecks(db, redisClient, provs),
		Breakers:        provs.Breakers(),
		RateLimiter:     rateLimiter,
		EndpointLimiter: endpointLimiter,
		Degradation:     degradation,
	}, l)

	outboxProcessor.Start()
	dlqProcessor.Start()

	if consumer != nil {
		if err := consumer.Start(); err != nil {
			l.Error("Failed to start Kafka consumer", "error", err)
			os.Exit(1)
		}
	}

	// Start the server in a goroutine
	go func() {
		l.Info(fmt.Sprintf("Server is starting on port %d", cfg.Port))

		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			l.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown via interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		l.Error("Server forced to shutdown", "error", err)
	}

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			l.Error("Failed to stop Kafka consumer", "error", err)
		}
	}

	outboxProcessor.Stop()
	dlqProcessor.Stop()

	if producer != nil {
		if err := producer.Close(); err != nil {
			l.Error("Failed to close Kafka producer", "error", err)
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			l.Error("Failed to close Redis client", "error", err)
		}
	}

	if err := db.Close(); err != nil {
		l.Error("Failed to close database", "error", err)
	}

	l.Info("Server exiting")
}

func healthChecks(db *database.Database, redisClient *redis.Client, provs *providers.Set) []api.HealthCheck {
	checks := []api.HealthCheck{
		{Name: "database", Check: db.Ping},
	}

	if redisClient != nil {
		checks = append(checks, api.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	probe := func(name string, ok func(context.Context) bool) api.HealthCheck {
		return api.HealthCheck{
			Name: name,
			Check: func(ctx context.Context) error {
				if !ok(ctx) {
					return errors.New("health check failed")
				}
				return nil
			},
		}
	}

	return append(checks,
		probe("payment", provs.Payment.HealthCheck),
		probe("geo", provs.Geo.HealthCheck),
		probe("notification", provs.Notification.HealthCheck),
	)
}
