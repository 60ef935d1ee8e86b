package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const realtimeHeartbeatInterval = 25 * time.Second

type streamEventPayload struct {
	PostIDs   []string `json:"postIds,omitempty"`
	Source    string   `json:"source"`
	Timestamp string   `json:"timestamp"`
}

func (h *httpHandler) handleFeedStream(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	stream, cleanup := h.realtime.Subscribe(c.Request.Context(), userID)
	defer cleanup()

	writeEvent := func(eventType string, payload streamEventPayload) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error("failed to encode stream event", zap.Error(err))
			return false
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeEvent(realtimeEventHeartbeat, streamEventPayload{
		Source:    realtimeSourceBackend,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}) {
		return
	}

	heartbeat := time.NewTicker(realtimeHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			if !writeEvent(realtimeEventHeartbeat, streamEventPayload{
				Source:    realtimeSourceBackend,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}) {
				return
			}
		case message, open := <-stream:
			if !open {
				return
			}
			if !writeEvent(message.EventType, streamEventPayload{
				PostIDs:   message.PostIDs,
				Source:    realtimeSourceBackend,
				Timestamp: message.Timestamp.UTC().Format(time.RFC3339),
			}) {
				return
			}
		}
	}
}
