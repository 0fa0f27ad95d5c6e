package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/kerylaw/PIYAKAST-sub000/internal/config"
	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
)

// CassandraMessageRepository persists chat messages to the
// messages_by_stream table, clustered by created_at DESC so the recent
// batch read is a single partition slice.
type CassandraMessageRepository struct {
	session *gocql.Session
}

func NewCassandraMessageRepository(cfg config.CassandraConfig) (*CassandraMessageRepository, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	return &CassandraMessageRepository{session: session}, nil
}

func (r *CassandraMessageRepository) SaveMessage(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO messages_by_stream (
			stream_id, message_id, user_id, message, created_at
		) VALUES (?, ?, ?, ?, ?)`

	err := r.session.Query(query,
		msg.StreamID,
		msg.ID,
		msg.UserID,
		msg.Message,
		msg.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

func (r *CassandraMessageRepository) GetRecentMessages(ctx context.Context, streamID string, limit int) ([]domain.ChatMessage, error) {
	query := `SELECT message_id, user_id, message, created_at
			  FROM messages_by_stream
			  WHERE stream_id = ?
			  ORDER BY created_at DESC
			  LIMIT ?`

	iter := r.session.Query(query, streamID, limit).WithContext(ctx).Iter()

	var messages []domain.ChatMessage
	var msg domain.ChatMessage

	for iter.Scan(&msg.ID, &msg.UserID, &msg.Message, &msg.CreatedAt) {
		msg.StreamID = streamID
		messages = append(messages, msg)
		msg = domain.ChatMessage{}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

func (r *CassandraMessageRepository) Close() error {
	r.session.Close()
	return nil
}

func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.LocalQuorum
	}
}
