package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kerylaw/PIYAKAST-sub000/internal/cache"
	"github.com/kerylaw/PIYAKAST-sub000/internal/config"
	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
	"github.com/kerylaw/PIYAKAST-sub000/internal/hub"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	failSave bool
}

func (r *fakeMessageRepo) SaveMessage(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return errors.New("cassandra unavailable")
	}
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) GetRecentMessages(ctx context.Context, streamID string, limit int) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ChatMessage
	for i := len(r.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if r.messages[i].StreamID == streamID {
			out = append(out, r.messages[i])
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Close() error { return nil }

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type fakeMessageCache struct {
	mu          sync.Mutex
	entries     map[string][]domain.ChatMessage
	invalidated int
}

func newFakeMessageCache() *fakeMessageCache {
	return &fakeMessageCache{entries: make(map[string][]domain.ChatMessage)}
}

func (c *fakeMessageCache) Get(ctx context.Context, streamID string) ([]domain.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msgs, ok := c.entries[streamID]; ok {
		return msgs, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *fakeMessageCache) Set(ctx context.Context, streamID string, messages []domain.ChatMessage, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[streamID] = messages
	return nil
}

func (c *fakeMessageCache) Invalidate(ctx context.Context, streamID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, streamID)
	c.invalidated++
	return nil
}

func (c *fakeMessageCache) Close() error { return nil }

func newChatFixture(repo *fakeMessageRepo) (*hub.Hub, ChatService) {
	h := hub.NewHub()
	go h.Run()
	svc := NewChatService(h, repo, nil, config.ChatConfig{HistoryLimit: 20, HistoryCacheTTL: 30 * time.Second})
	return h, svc
}

func newChatClient(h *hub.Hub, id string) *hub.Client {
	c := hub.NewClient(id, h, nil, config.WebSocketConfig{})
	h.Register(c)
	return c
}

func recvFrame(t *testing.T, c *hub.Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var out map[string]interface{}
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("invalid json frame: %v", err)
		}
		return out
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame on client %s", c.ID)
		return nil
	}
}

// recvFrameOfType skips advisory frames (viewer_count_update) until a
// frame of the wanted type arrives.
func recvFrameOfType(t *testing.T, c *hub.Client, want string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 10; i++ {
		frame := recvFrame(t, c)
		if frame["type"] == want {
			return frame
		}
		if frame["type"] == domain.MsgTypeViewerCount {
			continue
		}
		t.Fatalf("client %s got frame type %v, want %v", c.ID, frame["type"], want)
	}
	t.Fatalf("no %s frame for client %s", want, c.ID)
	return nil
}

func expectQuiet(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		var out map[string]interface{}
		_ = json.Unmarshal(data, &out)
		if out["type"] != domain.MsgTypeViewerCount {
			t.Fatalf("unexpected frame on client %s: %s", c.ID, data)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinFreshStreamYieldsEmptyHistory(t *testing.T) {
	h, svc := newChatFixture(&fakeMessageRepo{})
	c := newChatClient(h, "c1")

	if err := svc.HandleJoinStream(context.Background(), c, "abc"); err != nil {
		t.Fatalf("join: %v", err)
	}

	frame := recvFrameOfType(t, c, domain.MsgTypeChatHistory)
	messages, ok := frame["messages"].([]interface{})
	if !ok {
		t.Fatalf("chat_history should carry a messages list, got %v", frame["messages"])
	}
	if len(messages) != 0 {
		t.Fatalf("fresh stream history should be empty, got %d messages", len(messages))
	}
}

func TestChatRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := &fakeMessageRepo{}
	h, svc := newChatFixture(repo)

	a := newChatClient(h, "a")
	b := newChatClient(h, "b")
	svc.HandleJoinStream(ctx, a, "abc")
	svc.HandleJoinStream(ctx, b, "abc")
	recvFrameOfType(t, a, domain.MsgTypeChatHistory)
	recvFrameOfType(t, b, domain.MsgTypeChatHistory)

	if err := svc.HandleChatMessage(ctx, a, "abc", "u1", "hello"); err != nil {
		t.Fatalf("chat message: %v", err)
	}

	for _, c := range []*hub.Client{a, b} {
		frame := recvFrameOfType(t, c, domain.MsgTypeNewMessage)
		msg := frame["message"].(map[string]interface{})
		if msg["message"] != "hello" || msg["userId"] != "u1" {
			t.Fatalf("client %s got wrong message payload: %v", c.ID, msg)
		}
	}

	// A late joiner replays the persisted message in history.
	c := newChatClient(h, "c")
	svc.HandleJoinStream(ctx, c, "abc")
	frame := recvFrameOfType(t, c, domain.MsgTypeChatHistory)
	messages := frame["messages"].([]interface{})
	if len(messages) != 1 {
		t.Fatalf("late joiner history should have 1 message, got %d", len(messages))
	}
	first := messages[0].(map[string]interface{})
	if first["message"] != "hello" {
		t.Fatalf("history message = %v, want hello", first["message"])
	}
}

func TestHistoryIsChronological(t *testing.T) {
	ctx := context.Background()
	repo := &fakeMessageRepo{}
	h, svc := newChatFixture(repo)

	a := newChatClient(h, "a")
	svc.HandleJoinStream(ctx, a, "abc")
	recvFrameOfType(t, a, domain.MsgTypeChatHistory)

	for _, text := range []string{"first", "second", "third"} {
		if err := svc.HandleChatMessage(ctx, a, "abc", "u1", text); err != nil {
			t.Fatalf("chat message: %v", err)
		}
		recvFrameOfType(t, a, domain.MsgTypeNewMessage)
	}

	b := newChatClient(h, "b")
	svc.HandleJoinStream(ctx, b, "abc")
	frame := recvFrameOfType(t, b, domain.MsgTypeChatHistory)
	messages := frame["messages"].([]interface{})
	if len(messages) != 3 {
		t.Fatalf("history length = %d, want 3", len(messages))
	}
	want := []string{"first", "second", "third"}
	for i, raw := range messages {
		msg := raw.(map[string]interface{})
		if msg["message"] != want[i] {
			t.Fatalf("history[%d] = %v, want %v (oldest first)", i, msg["message"], want[i])
		}
	}
}

func TestChatMessageRequiresJoinedStream(t *testing.T) {
	ctx := context.Background()
	h, svc := newChatFixture(&fakeMessageRepo{})

	a := newChatClient(h, "a")
	b := newChatClient(h, "b")
	svc.HandleJoinStream(ctx, a, "r1")
	svc.HandleJoinStream(ctx, b, "r2")
	recvFrameOfType(t, a, domain.MsgTypeChatHistory)
	recvFrameOfType(t, b, domain.MsgTypeChatHistory)

	// a tries to post into a room it never joined
	if err := svc.HandleChatMessage(ctx, a, "r2", "u1", "sneaky"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	frame := recvFrameOfType(t, a, domain.MsgTypeMessageRejected)
	if frame["reason"] != domain.ReasonNotJoined {
		t.Fatalf("reason = %v, want %v", frame["reason"], domain.ReasonNotJoined)
	}
	expectQuiet(t, b)
}

func TestPersistFailureIsNotBroadcast(t *testing.T) {
	ctx := context.Background()
	repo := &fakeMessageRepo{failSave: true}
	h, svc := newChatFixture(repo)

	a := newChatClient(h, "a")
	b := newChatClient(h, "b")
	svc.HandleJoinStream(ctx, a, "abc")
	svc.HandleJoinStream(ctx, b, "abc")
	recvFrameOfType(t, a, domain.MsgTypeChatHistory)
	recvFrameOfType(t, b, domain.MsgTypeChatHistory)

	if err := svc.HandleChatMessage(ctx, a, "abc", "u1", "hello"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	frame := recvFrameOfType(t, a, domain.MsgTypeMessageRejected)
	if frame["reason"] != domain.ReasonPersistFailed {
		t.Fatalf("reason = %v, want %v", frame["reason"], domain.ReasonPersistFailed)
	}
	expectQuiet(t, b)
	if repo.count() != 0 {
		t.Fatalf("failed save should persist nothing")
	}
}

func TestPersistedHistorySurvivesRoomTeardown(t *testing.T) {
	ctx := context.Background()
	repo := &fakeMessageRepo{}
	h, svc := newChatFixture(repo)

	a := newChatClient(h, "a")
	b := newChatClient(h, "b")
	svc.HandleJoinStream(ctx, a, "abc")
	svc.HandleJoinStream(ctx, b, "abc")
	recvFrameOfType(t, a, domain.MsgTypeChatHistory)
	recvFrameOfType(t, b, domain.MsgTypeChatHistory)

	if err := svc.HandleChatMessage(ctx, a, "abc", "u1", "hello"); err != nil {
		t.Fatalf("chat message: %v", err)
	}
	recvFrameOfType(t, a, domain.MsgTypeNewMessage)
	recvFrameOfType(t, b, domain.MsgTypeNewMessage)

	// Both members leave; the in-memory room is torn down but the
	// message outlives it in storage.
	h.Unregister(a)
	h.Unregister(b)
	deadline := time.Now().Add(time.Second)
	for h.RoomSize("abc") != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	c := newChatClient(h, "c")
	svc.HandleJoinStream(ctx, c, "abc")
	frame := recvFrameOfType(t, c, domain.MsgTypeChatHistory)
	messages := frame["messages"].([]interface{})
	if len(messages) != 1 {
		t.Fatalf("fresh room over persisted stream should replay history, got %d messages", len(messages))
	}
}

func TestMissingFieldsAreRejected(t *testing.T) {
	ctx := context.Background()
	h, svc := newChatFixture(&fakeMessageRepo{})

	a := newChatClient(h, "a")
	svc.HandleJoinStream(ctx, a, "abc")
	recvFrameOfType(t, a, domain.MsgTypeChatHistory)

	if err := svc.HandleChatMessage(ctx, a, "abc", "", "hello"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	frame := recvFrameOfType(t, a, domain.MsgTypeMessageRejected)
	if frame["reason"] != domain.ReasonBadRequest {
		t.Fatalf("reason = %v, want %v", frame["reason"], domain.ReasonBadRequest)
	}
}

func TestNewMessageInvalidatesHistoryCache(t *testing.T) {
	ctx := context.Background()
	repo := &fakeMessageRepo{}
	msgCache := newFakeMessageCache()

	h := hub.NewHub()
	go h.Run()
	svc := NewChatService(h, repo, msgCache, config.ChatConfig{HistoryLimit: 20, HistoryCacheTTL: 30 * time.Second})

	a := newChatClient(h, "a")
	svc.HandleJoinStream(ctx, a, "abc")
	recvFrameOfType(t, a, domain.MsgTypeChatHistory)

	if err := svc.HandleChatMessage(ctx, a, "abc", "u1", "hello"); err != nil {
		t.Fatalf("chat message: %v", err)
	}

	msgCache.mu.Lock()
	invalidated := msgCache.invalidated
	msgCache.mu.Unlock()
	if invalidated != 1 {
		t.Fatalf("cache invalidations = %d, want 1", invalidated)
	}
}
