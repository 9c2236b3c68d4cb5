// Package webhook receives platform callbacks, verifies their signatures,
// and normalizes them into inbound queue tasks. Handlers never touch storage;
// everything beyond verification happens in the worker.
package webhook

import (
	"github.com/gin-gonic/gin"

	"replyforce_backend/internal/queue"
	"replyforce_backend/platform/config"
	"replyforce_backend/platform/logger"
)

// Handler terminates the Meta and Twitter webhook endpoints.
type Handler struct {
	cfg      config.WebhookConfig
	enqueuer queue.Enqueuer
	log      *logger.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(cfg config.WebhookConfig, enqueuer queue.Enqueuer, log *logger.Logger) *Handler {
	return &Handler{cfg: cfg, enqueuer: enqueuer, log: log}
}

// RegisterRoutes mounts the webhook endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/meta", h.verifyMeta)
	rg.POST("/meta", h.receiveMeta)
	rg.GET("/twitter", h.twitterCRC)
	rg.POST("/twitter", h.receiveTwitter)
}

// enqueueAll hands the normalized events to the inbound queue. A single
// webhook call can carry several messages; each is enqueued independently.
func (h *Handler) enqueueAll(c *gin.Context, payloads []queue.InboundMessagePayload) {
	for _, p := range payloads {
		if err := h.enqueuer.EnqueueInboundMessage(c.Request.Context(), p); err != nil {
			h.log.QueueError(queue.TaskInboundMessage, err)
		}
	}
}
