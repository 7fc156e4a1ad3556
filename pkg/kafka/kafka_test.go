package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/pkg/logger"
)

func TestProducer_SendMessage(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		assert.Equal(t, "42", string(key))
		require.Len(t, msg.Headers, 1)
		assert.Equal(t, "event_type", string(msg.Headers[0].Key))
		assert.False(t, msg.Timestamp.IsZero())
		return nil
	})

	p := WrapProducer(sp, logger.NewNop())
	require.NoError(t, p.SendMessage(context.Background(), "kitchen.orders", "42", []byte(`{}`),
		map[string]string{"event_type": "order.kitchen_send"}))
	require.NoError(t, p.Close())
}

func TestProducer_SendMessageCancelled(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := WrapProducer(sp, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.SendMessage(ctx, "kitchen.orders", "1", nil, nil), context.Canceled)
	require.NoError(t, p.Close())
}

type handlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

func (f handlerFunc) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return f(ctx, msg)
}

func TestConsumer_Dispatch(t *testing.T) {
	c := WrapConsumerGroup(nil, []string{"kitchen.status"}, logger.NewNop())

	var got []string
	c.RegisterHandler("kitchen.status", handlerFunc(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		got = append(got, string(msg.Value))
		if string(msg.Value) == "bad" {
			return errors.New("boom")
		}
		return nil
	}))

	ctx := context.Background()
	c.Dispatch(ctx, &sarama.ConsumerMessage{Topic: "kitchen.status", Value: []byte("ok")})
	c.Dispatch(ctx, &sarama.ConsumerMessage{Topic: "kitchen.status", Value: []byte("bad")})
	c.Dispatch(ctx, &sarama.ConsumerMessage{Topic: "unknown", Value: []byte("ignored")})

	assert.Equal(t, []string{"ok", "bad"}, got)
}

func TestConsumer_StartWithoutTopics(t *testing.T) {
	c := WrapConsumerGroup(nil, nil, logger.NewNop())
	assert.Error(t, c.Start())
}

func TestConsumer_RegisterHandlerSubscribes(t *testing.T) {
	c := WrapConsumerGroup(nil, []string{"kitchen.status"}, logger.NewNop())
	noop := handlerFunc(func(ctx context.Context, msg *sarama.ConsumerMessage) error { return nil })

	c.RegisterHandler("kitchen.status", noop)
	c.RegisterHandler("kitchen.audit", noop)
	c.RegisterHandler("kitchen.audit", noop)

	assert.Equal(t, []string{"kitchen.status", "kitchen.audit"}, c.topics)
}
