package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"replyforce_backend/internal/notification/sse"
	"replyforce_backend/platform/apperr"
)

const streamHeartbeat = 25 * time.Second

// StreamHandler serves the dashboard's live conversation feed as
// server-sent events.
type StreamHandler struct {
	broadcaster *sse.Broadcaster
}

// NewStreamHandler creates the SSE handler.
func NewStreamHandler(broadcaster *sse.Broadcaster) *StreamHandler {
	return &StreamHandler{broadcaster: broadcaster}
}

// RegisterRoutes mounts the stream endpoint under the given group.
func (h *StreamHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stream/conversations", h.streamConversations)
}

func (h *StreamHandler) streamConversations(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if _, err := uuid.Parse(tenantID); err != nil {
		respondError(c, apperr.Validation("tenantId query parameter must be a uuid"))
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		respondError(c, apperr.Internal("streaming unsupported"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	updates, cancel := h.broadcaster.Subscribe(tenantID)
	defer cancel()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	fmt.Fprint(c.Writer, ": connected\n\n")
	flusher.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		case update, open := <-updates:
			if !open {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: conversation\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
