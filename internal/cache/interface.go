package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// MessageCache caches the recent-history batch served to late joiners.
// Entries are keyed per stream and invalidated whenever a new message is
// persisted for that stream.
type MessageCache interface {
	Get(ctx context.Context, streamID string) ([]domain.ChatMessage, error)
	Set(ctx context.Context, streamID string, messages []domain.ChatMessage, ttl time.Duration) error
	Invalidate(ctx context.Context, streamID string) error
	Close() error
}
