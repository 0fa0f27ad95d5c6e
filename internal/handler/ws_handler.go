package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kerylaw/PIYAKAST-sub000/internal/config"
	"github.com/kerylaw/PIYAKAST-sub000/internal/domain"
	"github.com/kerylaw/PIYAKAST-sub000/internal/hub"
	"github.com/kerylaw/PIYAKAST-sub000/internal/service"
	"github.com/kerylaw/PIYAKAST-sub000/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections on /ws and dispatches the chat
// protocol to the chat service.
type WSHandler struct {
	hub     *hub.Hub
	service service.ChatService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.L().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage, h.onDisconnect)
}

func (h *WSHandler) onDisconnect(client *hub.Client) {
	if err := h.service.HandleDisconnect(context.Background(), client); err != nil {
		log.L().Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("disconnect handling failed")
	}
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx := context.Background()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewMessageRejected(domain.ReasonBadRequest))
		return
	}

	switch base.Type {
	case domain.MsgTypeJoinStream:
		var msg domain.JoinStreamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewMessageRejected(domain.ReasonBadRequest))
			return
		}
		if err := h.service.HandleJoinStream(ctx, client, msg.StreamID); err != nil {
			log.L().Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("join_stream failed")
		}

	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessageIn
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewMessageRejected(domain.ReasonBadRequest))
			return
		}
		if err := h.service.HandleChatMessage(ctx, client, msg.StreamID, msg.UserID, msg.Message); err != nil {
			log.L().Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("chat_message failed")
		}

	default:
		client.SendMessage(domain.NewMessageRejected(domain.ReasonBadRequest))
	}
}
