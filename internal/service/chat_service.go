package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/kerylaw/PIYAKAST-sub000/internal/cache"
	"github.com/kerylaw/PIYAKAST-sub000/internal/config"
	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
	"github.com/kerylaw/PIYAKAST-sub000/internal/hub"
	"github.com/kerylaw/PIYAKAST-sub000/internal/repository"
	"github.com/kerylaw/PIYAKAST-sub000/pkg/log"
)

type chatService struct {
	hub      *hub.Hub
	messages repository.MessageRepository
	cache    cache.MessageCache
	config   config.ChatConfig
	sf       singleflight.Group
}

func NewChatService(
	h *hub.Hub,
	messages repository.MessageRepository,
	msgCache cache.MessageCache,
	cfg config.ChatConfig,
) ChatService {
	return &chatService{
		hub:      h,
		messages: messages,
		cache:    msgCache,
		config:   cfg,
	}
}

func (s *chatService) HandleJoinStream(ctx context.Context, c *hub.Client, streamID string) error {
	if streamID == "" {
		return c.SendMessage(domain.NewMessageRejected(domain.ReasonBadRequest))
	}

	s.hub.JoinStream(c, streamID)

	// Replay the recent batch, oldest first, to the joining client only.
	// A fresh room gets an empty list, not an error.
	history, err := s.recentMessages(ctx, streamID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to load chat history")
		history = nil
	}

	if err := c.SendMessage(&domain.ChatHistoryMessage{
		Type:     domain.MsgTypeChatHistory,
		StreamID: streamID,
		Messages: chronological(history),
	}); err != nil {
		return err
	}

	s.BroadcastViewerCount(streamID, s.hub.RoomSize(streamID))
	return nil
}

func (s *chatService) HandleChatMessage(ctx context.Context, c *hub.Client, streamID, userID, message string) error {
	if streamID == "" || userID == "" || message == "" {
		return c.SendMessage(domain.NewMessageRejected(domain.ReasonBadRequest))
	}
	if c.Stream() != streamID {
		return c.SendMessage(domain.NewMessageRejected(domain.ReasonNotJoined))
	}

	msg := &domain.ChatMessage{
		ID:        uuid.New().String(),
		StreamID:  streamID,
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	// Persist first; a message that failed to persist is never broadcast.
	if err := s.messages.SaveMessage(ctx, msg); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str(log.FieldStreamID, streamID).
			Str(log.FieldUserID, userID).
			Msg("failed to persist chat message")
		return c.SendMessage(domain.NewMessageRejected(domain.ReasonPersistFailed))
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, streamID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to invalidate history cache")
		}
	}

	return s.hub.BroadcastToStream(streamID, &domain.NewMessageOut{
		Type:    domain.MsgTypeNewMessage,
		Message: *msg,
	})
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	// Room membership cleanup happens in the hub's unregister path;
	// an abrupt close is treated the same as a clean one.
	streamID := c.Stream()
	if streamID == "" {
		return nil
	}
	log.Ctx(ctx).Debug().
		Str(log.FieldClientID, c.ID).
		Str(log.FieldStreamID, streamID).
		Msg("client disconnected from stream room")
	return nil
}

// BroadcastViewerCount emits an advisory viewer_count_update to the
// stream's room. Best effort; not guaranteed on every change.
func (s *chatService) BroadcastViewerCount(streamID string, count int) {
	if err := s.hub.BroadcastToStream(streamID, &domain.ViewerCountMessage{
		Type:  domain.MsgTypeViewerCount,
		Count: count,
	}); err != nil {
		log.L().Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to broadcast viewer count")
	}
}

// recentMessages returns the newest-first batch for the stream, read
// through the cache with singleflight so concurrent joins of a hot
// stream hit storage once.
func (s *chatService) recentMessages(ctx context.Context, streamID string) ([]domain.ChatMessage, error) {
	if s.cache == nil {
		return s.messages.GetRecentMessages(ctx, streamID, s.config.HistoryLimit)
	}

	result, err, _ := s.sf.Do(streamID, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, streamID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Ctx(ctx).Warn().Err(err).Msg("history cache get error")
		}

		messages, err := s.messages.GetRecentMessages(ctx, streamID, s.config.HistoryLimit)
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, streamID, messages, s.config.HistoryCacheTTL); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("history cache set error")
		}
		return messages, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.ChatMessage), nil
}

// chronological reverses the stored descending-order batch so clients
// receive history oldest first. Always returns a non-nil slice.
func chronological(desc []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(desc))
	for i, msg := range desc {
		out[len(desc)-1-i] = msg
	}
	return out
}
