package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kerylaw/PIYAKAST-sub000/internal/config"
	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
)

type RedisMessageCache struct {
	client *redis.Client
	prefix string
}

func NewRedisMessageCache(cfg config.RedisConfig) (*RedisMessageCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisMessageCache{
		client: client,
		prefix: cfg.CachePrefix,
	}, nil
}

// Client exposes the underlying connection so the pub/sub layer can
// share it.
func (c *RedisMessageCache) Client() *redis.Client {
	return c.client
}

func (c *RedisMessageCache) key(streamID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, streamID)
}

func (c *RedisMessageCache) Get(ctx context.Context, streamID string) ([]domain.ChatMessage, error) {
	data, err := c.client.Get(ctx, c.key(streamID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var messages []domain.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return messages, nil
}

func (c *RedisMessageCache) Set(ctx context.Context, streamID string, messages []domain.ChatMessage, ttl time.Duration) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, c.key(streamID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

func (c *RedisMessageCache) Invalidate(ctx context.Context, streamID string) error {
	return c.client.Del(ctx, c.key(streamID)).Err()
}

func (c *RedisMessageCache) Close() error {
	return c.client.Close()
}
