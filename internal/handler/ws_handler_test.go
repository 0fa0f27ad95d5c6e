package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kerylaw/PIYAKAST-sub000/internal/config"
	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
	"github.com/kerylaw/PIYAKAST-sub000/internal/hub"
	"github.com/kerylaw/PIYAKAST-sub000/internal/service"
)

type stubMessageRepo struct{}

func (stubMessageRepo) SaveMessage(ctx context.Context, msg *domain.ChatMessage) error { return nil }

func (stubMessageRepo) GetRecentMessages(ctx context.Context, streamID string, limit int) ([]domain.ChatMessage, error) {
	return nil, nil
}

func (stubMessageRepo) Close() error { return nil }

func newWSFixture() (*hub.Hub, *WSHandler) {
	h := hub.NewHub()
	go h.Run()
	svc := service.NewChatService(h, stubMessageRepo{}, nil, config.ChatConfig{HistoryLimit: 20})
	return h, NewWSHandler(h, svc, config.WebSocketConfig{})
}

func recvWSFrame(t *testing.T, c *hub.Client) map[string]interface{} {
	t.Helper()
	for i := 0; i < 10; i++ {
		select {
		case data := <-c.Send:
			var out map[string]interface{}
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("invalid json frame: %v", err)
			}
			// Skip advisory frames, the dispatch reply is what matters.
			if out["type"] == domain.MsgTypeViewerCount {
				continue
			}
			return out
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for frame on client %s", c.ID)
		}
	}
	t.Fatalf("no dispatch reply for client %s", c.ID)
	return nil
}

func TestHandleMessageDispatch(t *testing.T) {
	tests := []struct {
		name       string
		join       string // joined first when non-empty
		raw        string
		wantType   string
		wantReason string
	}{
		{
			name:       "malformed json",
			raw:        `{not json`,
			wantType:   domain.MsgTypeMessageRejected,
			wantReason: domain.ReasonBadRequest,
		},
		{
			name:       "unknown type",
			raw:        `{"type":"dance_battle"}`,
			wantType:   domain.MsgTypeMessageRejected,
			wantReason: domain.ReasonBadRequest,
		},
		{
			name:       "join without stream id",
			raw:        `{"type":"join_stream"}`,
			wantType:   domain.MsgTypeMessageRejected,
			wantReason: domain.ReasonBadRequest,
		},
		{
			name:     "valid join",
			raw:      `{"type":"join_stream","streamId":"abc"}`,
			wantType: domain.MsgTypeChatHistory,
		},
		{
			name:       "chat before join",
			raw:        `{"type":"chat_message","streamId":"abc","userId":"u1","message":"hi"}`,
			wantType:   domain.MsgTypeMessageRejected,
			wantReason: domain.ReasonNotJoined,
		},
		{
			name:     "chat in joined stream",
			join:     "abc",
			raw:      `{"type":"chat_message","streamId":"abc","userId":"u1","message":"hi"}`,
			wantType: domain.MsgTypeNewMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ws := newWSFixture()
			client := hub.NewClient(tt.name, h, nil, config.WebSocketConfig{})
			h.Register(client)

			if tt.join != "" {
				ws.handleMessage(client, []byte(`{"type":"join_stream","streamId":"`+tt.join+`"}`))
				if frame := recvWSFrame(t, client); frame["type"] != domain.MsgTypeChatHistory {
					t.Fatalf("setup join got %v", frame["type"])
				}
			}

			ws.handleMessage(client, []byte(tt.raw))

			frame := recvWSFrame(t, client)
			if frame["type"] != tt.wantType {
				t.Fatalf("frame type = %v, want %v", frame["type"], tt.wantType)
			}
			if tt.wantReason != "" && frame["reason"] != tt.wantReason {
				t.Fatalf("reason = %v, want %v", frame["reason"], tt.wantReason)
			}
		})
	}
}
