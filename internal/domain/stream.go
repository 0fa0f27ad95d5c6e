package domain

import (
	"time"
)

// Stream is a live stream session as persisted in the relational store.
// IsLive transitions to false only through the liveness monitor's sweep
// or an explicit stop.
type Stream struct {
	ID          string
	OwnerID     string
	Title       string
	IsLive      bool
	ViewerCount int
	StartedAt   *time.Time
	EndedAt     *time.Time
	CreatedAt   time.Time
}

// StreamModel is the GORM model for the streams table.
type StreamModel struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	OwnerID     string `gorm:"type:varchar(36);index"`
	Title       string `gorm:"type:varchar(200)"`
	IsLive      bool   `gorm:"index;not null;default:false"`
	ViewerCount int    `gorm:"default:0"`
	StartedAt   *time.Time
	EndedAt     *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for StreamModel.
func (StreamModel) TableName() string {
	return "streams"
}

// ToDomain converts StreamModel to domain Stream.
func (m *StreamModel) ToDomain() *Stream {
	return &Stream{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		IsLive:      m.IsLive,
		ViewerCount: m.ViewerCount,
		StartedAt:   m.StartedAt,
		EndedAt:     m.EndedAt,
		CreatedAt:   m.CreatedAt,
	}
}
