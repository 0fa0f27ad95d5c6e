package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
)

// RedisPublisher publishes viewer-count updates to a Redis Pub/Sub
// channel.
type RedisPublisher struct {
	client     *redis.Client
	channel    string
	instanceID string
}

func NewRedisPublisher(client *redis.Client, channel, instanceID string) *RedisPublisher {
	if channel == "" {
		channel = "live:viewer_updates"
	}
	return &RedisPublisher{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
	}
}

func (p *RedisPublisher) PublishViewerUpdate(ctx context.Context, streamID string, count int) error {
	payload := domain.ViewerUpdatePayload{
		StreamID:         streamID,
		Count:            count,
		OriginInstanceID: p.instanceID,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, string(data)).Err()
}

func (p *RedisPublisher) Close() error {
	return nil
}
