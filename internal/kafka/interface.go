package kafka

import "context"

// Lifecycle event types.
const (
	EventStreamLive    = "stream_live"
	EventStreamOffline = "stream_offline"
)

// Reasons for stream_offline events.
const (
	ReasonExplicitStop     = "explicit_stop"
	ReasonHeartbeatTimeout = "heartbeat_timeout"
	ReasonNoHeartbeat      = "no_heartbeat"
)

// LifecycleEvent announces a stream going live or offline to downstream
// consumers (recommendations, notifications, analytics).
type LifecycleEvent struct {
	Type      string `json:"type"`
	StreamID  string `json:"stream_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type EventProducer interface {
	ProduceEvent(ctx context.Context, event *LifecycleEvent) error
	Close() error
}
