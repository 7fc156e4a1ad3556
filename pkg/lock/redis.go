package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared between processes. The key expires after ttl
// so a crashed holder cannot block others forever.
type Redis struct {
	client       redis.UniversalClient
	key          string
	ttl          time.Duration
	timeout      time.Duration
	pollInterval time.Duration
	logger       logger.Logger
}

// RedisConfig configures a Redis lock
type RedisConfig struct {
	Key          string
	TTL          time.Duration
	Timeout      time.Duration
	PollInterval time.Duration
}

// NewRedis creates a Redis backed lock
func NewRedis(client redis.UniversalClient, cfg RedisConfig, logger logger.Logger) *Redis {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cfg.Timeout * 2
	}

	return &Redis{
		client:       client,
		key:          cfg.Key,
		ttl:          cfg.TTL,
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		logger:       logger,
	}
}

// Acquire polls SET NX until the key is ours or the timeout elapses
func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	token := uuid.New().String()
	deadline := time.Now().Add(r.timeout)

	for {
		ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()

		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", r.key, err)
		}

		if ok {
			return func() { r.release(token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		select {
		case <-time.After(r.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Redis) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Error("Failed to release lock", "key", r.key, "error", err)
	}
}
