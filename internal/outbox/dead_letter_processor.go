package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/repository"
	"github.com/vaidashi/phone-order-api/pkg/logger"
	"github.com/vaidashi/phone-order-api/pkg/retry"
)

// ErrNoHandler is returned when a dead letter's event type has no registered handler
var ErrNoHandler = errors.New("no handler registered")

// DeadLetterProcessor periodically replays pending dead letters
type DeadLetterProcessor struct {
	dlqRepo         *repository.DeadLetterRepository
	handlers        handlerSet
	loop            pollLoop
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	backoffStrategy retry.BackoffStrategy
	logger          logger.Logger
}

// DeadLetterProcessorConfig holds the configuration for the DeadLetterProcessor
type DeadLetterProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	BackoffStrategy retry.BackoffStrategy
}

// NewDeadLetterProcessor creates a new dead letter processor
func NewDeadLetterProcessor(
	dlqRepo *repository.DeadLetterRepository,
	logger logger.Logger,
	config *DeadLetterProcessorConfig,
) *DeadLetterProcessor {
	backoffStrategy := config.BackoffStrategy
	if backoffStrategy == nil {
		backoffStrategy = retry.NewDefaultExponentialBackoff()
	}
	if config.PollingInterval <= 0 {
		config.PollingInterval = time.Minute
	}
	if config.BatchSize < 1 {
		config.BatchSize = 10
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 3
	}

	return &DeadLetterProcessor{
		dlqRepo:         dlqRepo,
		loop:            pollLoop{name: "Dead letter processor", logger: logger},
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		backoffStrategy: backoffStrategy,
		logger:          logger,
	}
}

// RegisterHandler registers a message handler for a specific event type
func (p *DeadLetterProcessor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers.register(eventType, handler)
}

// Start replays pending dead letters in the background
func (p *DeadLetterProcessor) Start() {
	p.loop.start(p.pollingInterval, func(ctx context.Context) bool {
		if err := p.ProcessBatch(ctx); err != nil {
			p.logger.Error("Failed to process dead letter batch", "error", err)
		}
		return false
	}, "batchSize", p.batchSize, "maxRetries", p.maxRetries)
}

// Stop stops the dead letter processor
func (p *DeadLetterProcessor) Stop() {
	p.loop.stop()
}

// ProcessBatch replays one batch of pending dead letters
func (p *DeadLetterProcessor) ProcessBatch(ctx context.Context) error {
	messages, err := p.dlqRepo.GetPendingMessages(ctx, p.batchSize)

	if err != nil {
		return fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Info("Processing batch of dead letter messages", "count", len(messages))

	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Error("Failed to process dead letter message",
				"error", err,
				"messageID", msg.ID,
				"aggregateID", msg.AggregateID,
				"eventType", msg.EventType,
				"retryCount", msg.RetryCount)
		}
	}

	return nil
}

// processMessage retries with backoff and discards the message when every attempt fails
func (p *DeadLetterProcessor) processMessage(ctx context.Context, msg *models.DeadLetterMessage) error {
	if err := p.dlqRepo.MarkAsRetrying(ctx, msg.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to mark message as retrying: %w", err)
	}

	handler, exists := p.handlers.lookup(msg.EventType)

	if !exists {
		if err := p.dlqRepo.MarkAsDiscarded(ctx, msg.ID, "No handler available"); err != nil {
			p.logger.Error("Failed to mark message as discarded", "error", err, "messageID", msg.ID)
		}
		return fmt.Errorf("%w for event type %s", ErrNoHandler, msg.EventType)
	}

	outboxMsg := msg.AsOutboxMessage()

	retryConfig := &retry.RetryConfig{
		MaxAttempts:     p.maxRetries,
		BackoffStrategy: p.backoffStrategy,
		Logger:          p.logger,
	}

	retryFunc := func(ctx context.Context, attempt int) error {
		return handler.HandleMessage(ctx, outboxMsg)
	}

	discardFunc := func(err error) error {
		reason := fmt.Sprintf("Failed to process message after %d attempts: %v", p.maxRetries, err)

		if markErr := p.dlqRepo.MarkAsDiscarded(ctx, msg.ID, reason); markErr != nil {
			p.logger.Error("Failed to mark message as discarded", "error", markErr, "messageID", msg.ID)
		}

		return fmt.Errorf("message discarded after %d retries: %w", p.maxRetries, err)
	}

	if err := retry.RetryWithDiscard(ctx, retryFunc, retryConfig, discardFunc); err != nil {
		return err
	}

	if err := p.dlqRepo.MarkAsResolved(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as resolved: %w", err)
	}

	p.logger.Info("Successfully processed dead letter message",
		"messageID", msg.ID,
		"aggregateID", msg.AggregateID,
		"eventType", msg.EventType)

	return nil
}

// Replay runs the handler of one pending dead letter a single time. On failure the message
// goes back to pending with the new error.
func (p *DeadLetterProcessor) Replay(ctx context.Context, id int64) error {
	msg, err := p.dlqRepo.GetMessage(ctx, id)
	if err != nil {
		return err
	}

	handler, exists := p.handlers.lookup(msg.EventType)
	if !exists {
		return fmt.Errorf("%w for event type %s", ErrNoHandler, msg.EventType)
	}

	if err := p.dlqRepo.MarkAsRetrying(ctx, id); err != nil {
		return err
	}

	if err := handler.HandleMessage(ctx, msg.AsOutboxMessage()); err != nil {
		if resetErr := p.dlqRepo.ResetToPending(ctx, id, err.Error()); resetErr != nil {
			p.logger.Error("Failed to reset dead letter message", "error", resetErr, "messageID", id)
		}
		return err
	}

	return p.dlqRepo.MarkAsResolved(ctx, id)
}
