package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Shopify/sarama"

	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// MessageHandler handles one record of a subscribed topic
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// ConsumerConfig is the configuration for the Kafka consumer
type ConsumerConfig struct {
	Brokers       []string
	Topics        []string
	ConsumerGroup string
	// FromNewest skips the backlog when the group has no committed offset
	FromNewest bool
}

// Consumer runs a consumer group and routes records to a handler per topic
type Consumer struct {
	group    sarama.ConsumerGroup
	topics   []string
	handlers map[string]MessageHandler
	logger   logger.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

// NewConsumer joins the consumer group on the brokers
func NewConsumer(cfg *ConsumerConfig, logger logger.Logger) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = "phone-order-api"
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	if cfg.FromNewest {
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return WrapConsumerGroup(group, cfg.Topics, logger), nil
}

// WrapConsumerGroup builds a Consumer around an existing group
func WrapConsumerGroup(group sarama.ConsumerGroup, topics []string, logger logger.Logger) *Consumer {
	return &Consumer{
		group:    group,
		topics:   append([]string(nil), topics...),
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// RegisterHandler routes a topic to handler and subscribes to it. Call before Start.
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.handlers[topic]; !ok && !contains(c.topics, topic) {
		c.topics = append(c.topics, topic)
	}
	c.handlers[topic] = handler
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Start consumes in the background until Stop
func (c *Consumer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.New("consumer already started")
	}
	if len(c.topics) == 0 {
		return errors.New("no topics to consume")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true

	c.wg.Add(2)
	go c.consume(ctx)
	go c.drainErrors(ctx)

	c.logger.Info("Kafka consumer started", "topics", c.topics)
	return nil
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	// Consume returns on every rebalance
	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.logger.Error("Kafka consumer error", "error", err)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// drainErrors reads the group error channel, which blocks the group when left unread
func (c *Consumer) drainErrors(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.logger.Error("Kafka consumer group error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

// Stop leaves the group and waits for the consume loop
func (c *Consumer) Stop() error {
	c.mu.Lock()
	started := c.started
	c.started = false
	c.mu.Unlock()

	if started {
		c.cancel()
		c.wg.Wait()
	}
	return c.group.Close()
}

// Setup is part of sarama.ConsumerGroupHandler
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	c.logger.Info("Kafka partitions assigned", "claims", session.Claims())
	return nil
}

// Cleanup is part of sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim routes records to handlers and marks every record after dispatch
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			c.Dispatch(session.Context(), msg)
			session.MarkMessage(msg, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// Dispatch hands one record to its topic handler. Handler errors are logged; the record is not redelivered.
func (c *Consumer) Dispatch(ctx context.Context, msg *sarama.ConsumerMessage) {
	c.mu.Lock()
	handler, exists := c.handlers[msg.Topic]
	c.mu.Unlock()

	if !exists {
		c.logger.Warn("No handler registered for topic", "topic", msg.Topic)
		return
	}

	if err := handler.HandleMessage(ctx, msg); err != nil {
		c.logger.Error("Failed to handle Kafka record",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key))
	}
}
