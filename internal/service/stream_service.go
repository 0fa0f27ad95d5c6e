package service

import (
	"context"
	"time"

	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
	"github.com/kerylaw/PIYAKAST-sub000/internal/kafka"
	"github.com/kerylaw/PIYAKAST-sub000/internal/liveness"
	"github.com/kerylaw/PIYAKAST-sub000/internal/pubsub"
	"github.com/kerylaw/PIYAKAST-sub000/internal/repository"
	"github.com/kerylaw/PIYAKAST-sub000/pkg/log"
)

type streamService struct {
	monitor   *liveness.Monitor
	streams   repository.StreamRepository
	producer  kafka.EventProducer
	publisher pubsub.Publisher
}

// NewStreamService creates a StreamService. producer and publisher may
// be nil when lifecycle events or cross-instance fan-out are disabled.
func NewStreamService(
	monitor *liveness.Monitor,
	streams repository.StreamRepository,
	producer kafka.EventProducer,
	publisher pubsub.Publisher,
) StreamService {
	return &streamService{
		monitor:   monitor,
		streams:   streams,
		producer:  producer,
		publisher: publisher,
	}
}

// StartStream marks the stream live. The heartbeat is recorded before
// the DB write so a sweep running concurrently with an explicit start
// always observes a fresh heartbeat and leaves the stream live.
func (s *streamService) StartStream(ctx context.Context, streamID, ownerID string) (*domain.Stream, error) {
	s.monitor.RecordHeartbeat(streamID, 0)

	stream, err := s.streams.SetStreamLive(ctx, streamID, ownerID)
	if err != nil {
		s.monitor.RemoveStream(streamID)
		return nil, err
	}

	s.emit(ctx, &kafka.LifecycleEvent{
		Type:      kafka.EventStreamLive,
		StreamID:  streamID,
		Timestamp: time.Now().Unix(),
	})

	log.Ctx(ctx).Info().Str(log.FieldStreamID, streamID).Msg("stream started")
	return stream, nil
}

func (s *streamService) StopStream(ctx context.Context, streamID string) error {
	s.monitor.RemoveStream(streamID)

	if err := s.streams.UpdateStreamStatus(ctx, streamID, false, 0); err != nil {
		return err
	}

	s.emit(ctx, &kafka.LifecycleEvent{
		Type:      kafka.EventStreamOffline,
		StreamID:  streamID,
		Reason:    kafka.ReasonExplicitStop,
		Timestamp: time.Now().Unix(),
	})

	log.Ctx(ctx).Info().Str(log.FieldStreamID, streamID).Msg("stream stopped")
	return nil
}

// Heartbeat refreshes the liveness registry and publishes an advisory
// viewer-count update. Fire and forget; errors never reach the caller.
func (s *streamService) Heartbeat(ctx context.Context, streamID string, viewerCount int) {
	s.monitor.RecordHeartbeat(streamID, viewerCount)

	if s.publisher != nil {
		if err := s.publisher.PublishViewerUpdate(ctx, streamID, viewerCount); err != nil {
			log.Ctx(ctx).Warn().Err(err).
				Str(log.FieldStreamID, streamID).
				Msg("failed to publish viewer update")
		}
	}
}

func (s *streamService) GetStream(ctx context.Context, streamID string) (*domain.Stream, error) {
	return s.streams.GetByID(ctx, streamID)
}

func (s *streamService) LiveStreams(ctx context.Context) ([]domain.Stream, error) {
	return s.streams.GetLiveStreams(ctx)
}

func (s *streamService) ActiveStreamIDs() []string {
	return s.monitor.ListActiveStreamIDs()
}

func (s *streamService) emit(ctx context.Context, event *kafka.LifecycleEvent) {
	if s.producer == nil {
		return
	}
	if err := s.producer.ProduceEvent(ctx, event); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str(log.FieldStreamID, event.StreamID).
			Msg("failed to produce lifecycle event")
	}
}
