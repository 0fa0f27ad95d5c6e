package domain

import "time"

// ChatMessage is a persisted chat message. Immutable once created;
// read back in reverse-chronological batches for history replay.
type ChatMessage struct {
	ID        string    `json:"id"`
	StreamID  string    `json:"streamId"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
