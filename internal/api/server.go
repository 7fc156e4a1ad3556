package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/vaidashi/phone-order-api/internal/conversation"
	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/providers/payment"
	"github.com/vaidashi/phone-order-api/internal/repository"
	"github.com/vaidashi/phone-order-api/internal/service"
	"github.com/vaidashi/phone-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/phone-order-api/pkg/logger"
	"github.com/vaidashi/phone-order-api/pkg/middleware"
)

// OrderService is the order API the handlers depend on
type OrderService interface {
	CreateDirect(ctx context.Context, draft *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, int, error)
	UpdateStatus(ctx context.Context, id int64, to models.OrderStatus) (*models.Order, error)
	HandlePaymentEvent(ctx context.Context, event *payment.WebhookEvent) error
	Stats(ctx context.Context) (*service.Dashboard, error)
}

// CallLogService reads call logs
type CallLogService interface {
	GetByCallID(ctx context.Context, callID string) (*models.CallLog, error)
	List(ctx context.Context, limit, offset int) ([]*models.CallLog, int, error)
}

// DeadLetterService manages dead letters
type DeadLetterService interface {
	List(ctx context.Context, status models.DeadLetterStatus, limit, offset int) ([]*models.DeadLetterMessage, int, error)
	Get(ctx context.Context, id int64) (*models.DeadLetterMessage, error)
	Retry(ctx context.Context, id int64) (*models.DeadLetterMessage, error)
	Discard(ctx context.Context, id int64, reason string) error
}

// OutboxInspector reads the side-effect queue
type OutboxInspector interface {
	CountByStatus(ctx context.Context) (map[models.OutboxStatus]int, error)
	GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error)
}

// VoiceAgent answers voice platform webhooks
type VoiceAgent interface {
	HandleEvent(ctx context.Context, ev *conversation.Event) conversation.Reply
}

// WebhookVerifier authenticates payment provider webhooks
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (*payment.WebhookEvent, error)
}

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options are the settings the HTTP layer reads
type Options struct {
	Port            int
	Env             string
	Development     bool
	ProviderMode    string
	VapiSecret      string
	DeliveryMinutes int
}

// Deps are the collaborators of the HTTP layer. Limiters and Degradation are optional.
type Deps struct {
	Orders       OrderService
	CallLogs     CallLogService
	DeadLetters  DeadLetterService
	Outbox       OutboxInspector
	Voice        VoiceAgent
	Payments     WebhookVerifier
	HealthChecks []HealthCheck
	Breakers     []*circuitbreaker.CircuitBreaker

	RateLimiter     *middleware.RateLimiterMiddleware
	EndpointLimiter *middleware.EndpointRateLimiterMiddleware
	Degradation     *middleware.GracefulDegradation
}

type Server struct {
	opts       Options
	deps       Deps
	logger     logger.Logger
	router     *mux.Router
	httpServer *http.Server
	now        func() time.Time
}

// NewServer creates the API server and its routes
func NewServer(opts Options, deps Deps, logger logger.Logger) *Server {
	s := &Server{
		opts:   opts,
		deps:   deps,
		logger: logger,
		router: mux.NewRouter(),
		now:    models.GetCurrentTime,
	}

	s.setupRoutes()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler including CORS
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.RateLimiter != nil {
		s.deps.RateLimiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	webhooks := s.router.PathPrefix("/webhook").Subrouter()
	if s.deps.EndpointLimiter != nil {
		webhooks.Use(s.deps.EndpointLimiter.Middleware)
	}
	webhooks.HandleFunc("/vapi", s.vapiWebhookHandler).Methods(http.MethodPost)
	webhooks.HandleFunc("/simulation", s.simulationWebhookHandler).Methods(http.MethodPost)
	webhooks.HandleFunc("/stripe", s.stripeWebhookHandler).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.deps.RateLimiter != nil {
		api.Use(s.deps.RateLimiter.Middleware)
	}
	if s.deps.Degradation != nil {
		api.Use(s.deps.Degradation.Middleware)
	}

	api.HandleFunc("/orders", s.getOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.getOrderByIDHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/status", s.updateOrderStatusHandler).Methods(http.MethodPatch)

	api.HandleFunc("/call-logs", s.getCallLogsHandler).Methods(http.MethodGet)
	api.HandleFunc("/call-logs/{callId}", s.getCallLogHandler).Methods(http.MethodGet)

	api.HandleFunc("/stats", s.getStatsHandler).Methods(http.MethodGet)

	api.HandleFunc("/dlq", s.getDeadLettersHandler).Methods(http.MethodGet)
	api.HandleFunc("/dlq/{id}", s.getDeadLetterHandler).Methods(http.MethodGet)
	api.HandleFunc("/dlq/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	api.HandleFunc("/dlq/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)

	// Admin API for monitoring and management
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/outbox", s.getOutboxStatsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/outbox/{id}", s.getOutboxMessageHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breakers", s.getCircuitBreakerStatusHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breakers/{name}/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/rate-limits", s.setEndpointRateLimitHandler).Methods(http.MethodPut)
	admin.HandleFunc("/rate-limits/reset", s.resetRateLimitsHandler).Methods(http.MethodPost)
}

// loggingMiddleware logs every request with its status and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := middleware.NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.StatusCode,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
