package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
	"github.com/kerylaw/PIYAKAST-sub000/internal/hub"
	"github.com/kerylaw/PIYAKAST-sub000/pkg/log"
)

// Subscriber subscribes to the viewer-update channel and rebroadcasts
// counts into the local hub, keeping counts advisory and eventually
// visible on every instance while room ordering stays per-process.
type Subscriber struct {
	client  *redis.Client
	channel string
	hub     *hub.Hub
	doneCh  chan struct{}
}

func NewSubscriber(client *redis.Client, channel string, h *hub.Hub) *Subscriber {
	if channel == "" {
		channel = "live:viewer_updates"
	}
	return &Subscriber{
		client:  client,
		channel: channel,
		hub:     h,
		doneCh:  make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run() exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run subscribes and rebroadcasts until ctx is done. Reconnects on
// receive errors.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.runSubscription(ctx); err != nil && ctx.Err() == nil {
				log.L().Warn().Err(err).Msg("viewer update subscription error, reconnecting in 2s")
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
					continue
				}
			}
			return
		}
	}
}

func (s *Subscriber) runSubscription(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for subscription to be active
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handleMessage(msg.Payload)
		}
	}
}

func (s *Subscriber) handleMessage(payload string) {
	var update domain.ViewerUpdatePayload
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		log.L().Warn().Err(err).Msg("viewer update: invalid payload")
		return
	}
	if update.StreamID == "" {
		return
	}

	msg := &domain.ViewerCountMessage{
		Type:  domain.MsgTypeViewerCount,
		Count: update.Count,
	}
	if err := s.hub.BroadcastToStream(update.StreamID, msg); err != nil {
		log.L().Error().Err(err).Str(log.FieldStreamID, update.StreamID).Msg("viewer update: broadcast error")
	}
}
