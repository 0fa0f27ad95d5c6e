package liveness

import (
	"context"
	"sync"
	"time"

	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
	"github.com/kerylaw/PIYAKAST-sub000/internal/kafka"
	"github.com/kerylaw/PIYAKAST-sub000/pkg/log"
)

// Config holds liveness monitor configuration.
type Config struct {
	SweepInterval    time.Duration
	HeartbeatTimeout time.Duration
}

// StreamStore is the persistence collaborator the monitor reconciles
// against.
type StreamStore interface {
	GetLiveStreams(ctx context.Context) ([]domain.Stream, error)
	UpdateStreamStatus(ctx context.Context, streamID string, isLive bool, viewerCount int) error
}

type heartbeatEntry struct {
	lastHeartbeatAt time.Time
	viewerCount     int
}

// Monitor keeps the persisted stream-live status consistent with actual
// heartbeat activity. The registry is in-memory and owned exclusively by
// the monitor; only its effect (the stream's is_live flag) is persisted.
// The monitor is the sole writer of is_live=false transitions.
type Monitor struct {
	store    StreamStore
	producer kafka.EventProducer
	config   Config

	entries map[string]heartbeatEntry
	mu      sync.Mutex

	cancel context.CancelFunc
	doneCh chan struct{}

	now func() time.Time
}

// NewMonitor creates a liveness monitor. producer may be nil when
// lifecycle events are disabled.
func NewMonitor(store StreamStore, producer kafka.EventProducer, cfg Config) *Monitor {
	return &Monitor{
		store:    store,
		producer: producer,
		config:   cfg,
		entries:  make(map[string]heartbeatEntry),
		now:      time.Now,
	}
}

// RecordHeartbeat upserts the registry entry for streamID with the
// current timestamp and viewer count. Callers are expected to invoke
// this at a sub-timeout cadence while the stream is active.
func (m *Monitor) RecordHeartbeat(streamID string, viewerCount int) {
	m.mu.Lock()
	m.entries[streamID] = heartbeatEntry{
		lastHeartbeatAt: m.now(),
		viewerCount:     viewerCount,
	}
	m.mu.Unlock()
}

// RemoveStream deregisters a stream that ended gracefully. Removing a
// non-existent entry is a no-op.
func (m *Monitor) RemoveStream(streamID string) {
	m.mu.Lock()
	delete(m.entries, streamID)
	m.mu.Unlock()
}

// ViewerCount returns the last reported viewer count for streamID.
func (m *Monitor) ViewerCount(streamID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[streamID].viewerCount
}

// ListActiveStreamIDs returns all stream ids whose last heartbeat is
// within the timeout window.
func (m *Monitor) ListActiveStreamIDs() []string {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.entries))
	for id, entry := range m.entries {
		if now.Sub(entry.lastHeartbeatAt) < m.config.HeartbeatTimeout {
			ids = append(ids, id)
		}
	}
	return ids
}

// Sweep removes stale registry entries and marks their streams not-live,
// then cross-checks the persisted live set against the registry so that
// streams orphaned by a monitor restart are deactivated too. Persistence
// errors are logged; the affected stream is caught by the cross-check on
// the next cycle.
func (m *Monitor) Sweep(ctx context.Context) {
	l := log.Ctx(ctx)
	now := m.now()

	m.mu.Lock()
	var stale []string
	for id, entry := range m.entries {
		if now.Sub(entry.lastHeartbeatAt) >= m.config.HeartbeatTimeout {
			stale = append(stale, id)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		if err := m.store.UpdateStreamStatus(ctx, id, false, 0); err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, id).Msg("failed to deactivate stale stream")
			continue
		}
		l.Info().Str(log.FieldStreamID, id).Msg("stream deactivated: heartbeat timeout")
		m.emitOffline(ctx, id, kafka.ReasonHeartbeatTimeout)
	}

	persisted, err := m.store.GetLiveStreams(ctx)
	if err != nil {
		l.Error().Err(err).Msg("failed to list live streams for sweep cross-check")
		return
	}

	m.mu.Lock()
	var orphaned []string
	for _, s := range persisted {
		if _, ok := m.entries[s.ID]; !ok {
			orphaned = append(orphaned, s.ID)
		}
	}
	m.mu.Unlock()

	for _, id := range orphaned {
		if err := m.store.UpdateStreamStatus(ctx, id, false, 0); err != nil {
			l.Error().Err(err).Str(log.FieldStreamID, id).Msg("failed to deactivate orphaned stream")
			continue
		}
		l.Info().Str(log.FieldStreamID, id).Msg("stream deactivated: live in storage without heartbeat")
		m.emitOffline(ctx, id, kafka.ReasonNoHeartbeat)
	}
}

func (m *Monitor) emitOffline(ctx context.Context, streamID, reason string) {
	if m.producer == nil {
		return
	}
	event := &kafka.LifecycleEvent{
		Type:      kafka.EventStreamOffline,
		StreamID:  streamID,
		Reason:    reason,
		Timestamp: m.now().Unix(),
	}
	if err := m.producer.ProduceEvent(ctx, event); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to produce stream_offline event")
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.doneCh = make(chan struct{})

	go m.sweepLoop(ctx)
	log.L().Info().
		Dur("interval", m.config.SweepInterval).
		Dur("timeout", m.config.HeartbeatTimeout).
		Msg("liveness monitor started")
}

func (m *Monitor) sweepLoop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Stop cancels the sweep loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.doneCh
	}
}
