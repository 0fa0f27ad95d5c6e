package service

import (
	"context"

	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
	"github.com/kerylaw/PIYAKAST-sub000/internal/hub"
)

// ChatService handles the chat room protocol: join with history replay,
// persist-then-broadcast messaging, and disconnect cleanup.
type ChatService interface {
	HandleJoinStream(ctx context.Context, client *hub.Client, streamID string) error
	HandleChatMessage(ctx context.Context, client *hub.Client, streamID, userID, message string) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
	BroadcastViewerCount(streamID string, count int)
}

// StreamService owns explicit stream lifecycle transitions and the
// heartbeat ingestion path.
type StreamService interface {
	StartStream(ctx context.Context, streamID, ownerID string) (*domain.Stream, error)
	StopStream(ctx context.Context, streamID string) error
	Heartbeat(ctx context.Context, streamID string, viewerCount int)
	GetStream(ctx context.Context, streamID string) (*domain.Stream, error)
	LiveStreams(ctx context.Context) ([]domain.Stream, error)
	ActiveStreamIDs() []string
}
