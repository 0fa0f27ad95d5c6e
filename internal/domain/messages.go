package domain

// WebSocket message types from client.
const (
	MsgTypeJoinStream  = "join_stream"
	MsgTypeChatMessage = "chat_message"
)

// WebSocket message types to client.
const (
	MsgTypeChatHistory     = "chat_history"
	MsgTypeNewMessage      = "new_message"
	MsgTypeViewerCount     = "viewer_count_update"
	MsgTypeMessageRejected = "message_rejected"
)

// Rejection reasons
const (
	ReasonBadRequest    = "bad_request"
	ReasonNotJoined     = "not_joined"
	ReasonPersistFailed = "persist_failed"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type JoinStreamMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
}

type ChatMessageIn struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	UserID   string `json:"userId"`
	Message  string `json:"message"`
}

// Server -> Client messages

type ChatHistoryMessage struct {
	Type     string        `json:"type"`
	StreamID string        `json:"streamId"`
	Messages []ChatMessage `json:"messages"`
}

type NewMessageOut struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type ViewerCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type MessageRejected struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func NewMessageRejected(reason string) *MessageRejected {
	return &MessageRejected{
		Type:   MsgTypeMessageRejected,
		Reason: reason,
	}
}

// ViewerUpdatePayload is published to Redis Pub/Sub so every instance
// can fan the advisory count out to its local room.
type ViewerUpdatePayload struct {
	StreamID         string `json:"stream_id"`
	Count            int    `json:"count"`
	OriginInstanceID string `json:"origin_instance_id,omitempty"`
}
