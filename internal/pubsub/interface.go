package pubsub

import "context"

// Publisher publishes viewer-count updates to the shared channel so
// every instance can fan them out to its local room.
type Publisher interface {
	PublishViewerUpdate(ctx context.Context, streamID string, count int) error
	Close() error
}
