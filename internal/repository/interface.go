package repository

import (
	"context"
	"errors"

	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
)

var ErrStreamNotFound = errors.New("stream not found")

// MessageRepository persists chat messages and reads them back in
// reverse-chronological batches for history replay.
type MessageRepository interface {
	SaveMessage(ctx context.Context, msg *domain.ChatMessage) error

	// GetRecentMessages returns up to limit messages for the stream,
	// newest first.
	GetRecentMessages(ctx context.Context, streamID string, limit int) ([]domain.ChatMessage, error)

	Close() error
}

// StreamRepository owns the persisted stream rows whose is_live flag the
// liveness monitor reconciles.
type StreamRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Stream, error)

	GetLiveStreams(ctx context.Context) ([]domain.Stream, error)

	// SetStreamLive marks the stream live and stamps started_at,
	// creating the row if it does not exist yet.
	SetStreamLive(ctx context.Context, id, ownerID string) (*domain.Stream, error)

	// UpdateStreamStatus flips the is_live flag; a false transition
	// also stamps ended_at.
	UpdateStreamStatus(ctx context.Context, id string, isLive bool, viewerCount int) error
}
