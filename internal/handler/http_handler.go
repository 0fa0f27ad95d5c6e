package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kerylaw/PIYAKAST-sub000/internal/repository"
	"github.com/kerylaw/PIYAKAST-sub000/internal/service"
)

// HTTPHandler exposes the stream-control surface: start/stop,
// heartbeat ingestion and liveness queries.
type HTTPHandler struct {
	streams service.StreamService
}

func NewHTTPHandler(streams service.StreamService) *HTTPHandler {
	return &HTTPHandler{streams: streams}
}

type heartbeatRequest struct {
	ViewerCount int `json:"viewerCount"`
}

type startStreamRequest struct {
	OwnerID string `json:"ownerId"`
}

// Heartbeat handles POST /api/v1/streams/:stream_id/heartbeat.
// Fire-and-forget: always 204, a malformed body just means count 0.
func (h *HTTPHandler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	_ = c.ShouldBindJSON(&req)

	h.streams.Heartbeat(c.Request.Context(), c.Param("stream_id"), req.ViewerCount)
	c.Status(http.StatusNoContent)
}

// StartStream handles POST /api/v1/streams/:stream_id/start.
func (h *HTTPHandler) StartStream(c *gin.Context) {
	var req startStreamRequest
	_ = c.ShouldBindJSON(&req)

	stream, err := h.streams.StartStream(c.Request.Context(), c.Param("stream_id"), req.OwnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start stream"})
		return
	}
	c.JSON(http.StatusOK, stream)
}

// StopStream handles POST /api/v1/streams/:stream_id/stop.
func (h *HTTPHandler) StopStream(c *gin.Context) {
	if err := h.streams.StopStream(c.Request.Context(), c.Param("stream_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop stream"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStream handles GET /api/v1/streams/:stream_id.
func (h *HTTPHandler) GetStream(c *gin.Context) {
	stream, err := h.streams.GetStream(c.Request.Context(), c.Param("stream_id"))
	if err != nil {
		if errors.Is(err, repository.ErrStreamNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stream"})
		return
	}
	c.JSON(http.StatusOK, stream)
}

// LiveStreams handles GET /api/v1/streams/live.
func (h *HTTPHandler) LiveStreams(c *gin.Context) {
	streams, err := h.streams.LiveStreams(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list live streams"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"streams": streams, "total": len(streams)})
}

// ActiveStreams handles GET /api/v1/streams/active. Reports the
// monitor's in-memory view: ids with a heartbeat inside the window.
func (h *HTTPHandler) ActiveStreams(c *gin.Context) {
	ids := h.streams.ActiveStreamIDs()
	c.JSON(http.StatusOK, gin.H{"streamIds": ids, "total": len(ids)})
}

// HealthCheck handles GET /health.
func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterRoutes mounts the HTTP API and the WebSocket endpoint.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine, ws *WSHandler) {
	r.GET("/ws", func(c *gin.Context) {
		ws.HandleWebSocket(c.Writer, c.Request)
	})
	r.GET("/health", h.HealthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/streams/:stream_id/heartbeat", h.Heartbeat)
		v1.POST("/streams/:stream_id/start", h.StartStream)
		v1.POST("/streams/:stream_id/stop", h.StopStream)
		v1.GET("/streams/live", h.LiveStreams)
		v1.GET("/streams/active", h.ActiveStreams)
		v1.GET("/streams/:stream_id", h.GetStream)
	}
}
