package hub

import (
	"encoding/json"
	"sync"

	"github.com/kerylaw/PIYAKAST-sub000/pkg/log"
)

// Hub groups WebSocket clients into per-stream rooms and fans broadcast
// messages out to every member of a room. A client belongs to at most
// one room at a time; the last join wins. Rooms are purely routing
// structures and are deleted once their last member leaves.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // streamID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomMessage
	mu         sync.RWMutex
}

type roomMessage struct {
	StreamID string
	Message  []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMessage, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				h.removeFromRoomLocked(client)
				delete(h.clients, client.ID)
				client.closeSend()
			}
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.rooms[msg.StreamID] {
				select {
				case client.Send <- msg.Message:
				default:
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinStream moves the client into streamID's room, leaving any room it
// was in before.
func (h *Hub) JoinStream(client *Client, streamID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(client)

	if _, ok := h.rooms[streamID]; !ok {
		h.rooms[streamID] = make(map[string]*Client)
	}
	h.rooms[streamID][client.ID] = client
	client.setStream(streamID)

	log.L().Info().
		Str(log.FieldClientID, client.ID).
		Str(log.FieldStreamID, streamID).
		Msg("client joined stream room")
}

// removeFromRoomLocked takes the client out of its current room and
// drops the room entry once it is empty. Caller holds h.mu.
func (h *Hub) removeFromRoomLocked(client *Client) {
	streamID := client.Stream()
	if streamID == "" {
		return
	}
	if members, ok := h.rooms[streamID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, streamID)
		}
	}
	client.setStream("")
}

// BroadcastToStream sends message to every client in the stream's room,
// the sender included. Delivery order matches processing order within a
// room because the Run loop iterates members synchronously.
func (h *Hub) BroadcastToStream(streamID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &roomMessage{
		StreamID: streamID,
		Message:  data,
	}
	return nil
}

// RoomSize returns the number of clients currently in the stream's room.
func (h *Hub) RoomSize(streamID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[streamID])
}
