// Package outbox dispatches the side-effect jobs written alongside order and call log changes.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/repository"
	"github.com/vaidashi/phone-order-api/pkg/logger"
	"github.com/vaidashi/phone-order-api/pkg/retry"
)

// MessageHandler runs the side effect of one outbox message
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *models.OutboxMessage) error
}

// HandlerFunc adapts a function to MessageHandler
type HandlerFunc func(ctx context.Context, message *models.OutboxMessage) error

func (f HandlerFunc) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	return f(ctx, message)
}

// Dead-letter reasons
const (
	ReasonNoHandler  = "no_handler"
	ReasonMaxRetries = "max_retries_exceeded"
)

// Processor polls the outbox and dispatches due messages by event type
type Processor struct {
	outboxRepo      *repository.OutboxRepository
	dlqRepo         *repository.DeadLetterRepository
	handlers        handlerSet
	loop            pollLoop
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	backoff         retry.BackoffStrategy
	now             func() time.Time
	logger          logger.Logger
}

// ProcessorConfig holds the configuration for the Processor
type ProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	BackoffStrategy retry.BackoffStrategy
}

// NewProcessor creates a new Processor
func NewProcessor(
	outboxRepo *repository.OutboxRepository,
	dlqRepo *repository.DeadLetterRepository,
	config ProcessorConfig,
	logger logger.Logger,
) *Processor {
	backoff := config.BackoffStrategy
	if backoff == nil {
		backoff = retry.NewDefaultExponentialBackoff()
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 3
	}
	if config.BatchSize < 1 {
		config.BatchSize = 10
	}
	if config.PollingInterval <= 0 {
		config.PollingInterval = 5 * time.Second
	}

	return &Processor{
		outboxRepo:      outboxRepo,
		dlqRepo:         dlqRepo,
		loop:            pollLoop{name: "Outbox processor", logger: logger},
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		backoff:         backoff,
		now:             models.GetCurrentTime,
		logger:          logger,
	}
}

// RegisterHandler registers a message handler for a specific event type
func (p *Processor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers.register(eventType, handler)
}

// Start polls the outbox in the background. A full batch is followed by another claim right away.
func (p *Processor) Start() {
	p.loop.start(p.pollingInterval, func(ctx context.Context) bool {
		n, err := p.ProcessBatch(ctx)
		if err != nil {
			p.logger.Error("Failed to process outbox batch", "error", err)
			return false
		}
		return n == p.batchSize
	}, "batchSize", p.batchSize, "maxRetries", p.maxRetries)
}

// Stop stops the outbox processor and waits for the current batch
func (p *Processor) Stop() {
	p.loop.stop()
}

// ProcessBatch claims and dispatches one batch of due messages. It returns how many were claimed.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	messages, err := p.outboxRepo.ClaimPending(ctx, p.batchSize)

	if err != nil {
		return 0, fmt.Errorf("failed to claim pending messages: %w", err)
	}

	if len(messages) == 0 {
		return 0, nil
	}

	p.logger.Debug("Processing batch of outbox messages", "count", len(messages))

	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Error("Failed to process message",
				"error", err,
				"messageID", msg.ID,
				"aggregateID", msg.AggregateID,
				"eventType", msg.EventType)
		}
	}

	return len(messages), nil
}

// processMessage runs one claimed message. Handler failures are rescheduled with backoff and
// dead-lettered once the attempts are used up; they never touch the order itself.
func (p *Processor) processMessage(ctx context.Context, msg *models.OutboxMessage) error {
	handler, exists := p.handlers.lookup(msg.EventType)

	if !exists {
		errorMsg := fmt.Sprintf("no handler registered for event type: %s", msg.EventType)

		if _, err := p.dlqRepo.MoveToDeadLetter(ctx, msg, errorMsg, ReasonNoHandler); err != nil {
			return fmt.Errorf("failed to dead-letter message: %w", err)
		}
		return fmt.Errorf("%s", errorMsg)
	}

	err := handler.HandleMessage(ctx, msg)

	if err == nil {
		if markErr := p.outboxRepo.MarkAsCompleted(ctx, msg.ID); markErr != nil {
			return fmt.Errorf("failed to mark message as completed: %w", markErr)
		}

		p.logger.Info("Successfully processed message",
			"messageID", msg.ID,
			"aggregateID", msg.AggregateID,
			"eventType", msg.EventType)
		return nil
	}

	if msg.ProcessingAttempts >= p.maxRetries {
		errorMsg := fmt.Sprintf("max retries reached: %s", err.Error())

		dl, dlErr := p.dlqRepo.MoveToDeadLetter(ctx, msg, errorMsg, ReasonMaxRetries)
		if dlErr != nil {
			return fmt.Errorf("failed to dead-letter message: %w", dlErr)
		}

		p.logger.Error("Message moved to dead letter queue",
			"error", err,
			"messageID", msg.ID,
			"deadLetterID", dl.ID,
			"attempts", msg.ProcessingAttempts)
		return err
	}

	nextAttempt := p.now().Add(p.backoff.NextBackoff(msg.ProcessingAttempts))

	if schedErr := p.outboxRepo.ScheduleRetry(ctx, msg.ID, err.Error(), nextAttempt); schedErr != nil {
		return fmt.Errorf("failed to schedule retry: %w", schedErr)
	}

	p.logger.Warn("Message processing failed, will retry",
		"error", err,
		"messageID", msg.ID,
		"attempt", msg.ProcessingAttempts,
		"nextAttemptAt", nextAttempt)
	return err
}
