package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"replyforce_backend/internal/channels"
	"replyforce_backend/internal/channels/tokenvault"
	"replyforce_backend/platform/apperr"
	"replyforce_backend/platform/validator"
)

// ChannelHandler manages connected social accounts: connecting a page with
// its access token and flipping auto-reply or channel status.
type ChannelHandler struct {
	repo     *channels.Repository
	vault    *tokenvault.Vault
	validate *validator.Validator
}

// NewChannelHandler creates the channel management handler.
func NewChannelHandler(repo *channels.Repository, vault *tokenvault.Vault, validate *validator.Validator) *ChannelHandler {
	return &ChannelHandler{repo: repo, vault: vault, validate: validate}
}

// RegisterRoutes mounts channel management under the given group.
func (h *ChannelHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/channels", h.connect)
	rg.PATCH("/channels/:id/status", h.updateStatus)
}

type connectChannelRequest struct {
	TenantID         string `json:"tenantId" validate:"required,uuid4"`
	Type             string `json:"type" validate:"required,oneof=FACEBOOK INSTAGRAM WHATSAPP TWITTER"`
	PlatformPageID   string `json:"platformPageId" validate:"required"`
	AccessToken      string `json:"accessToken" validate:"required"`
	AutoReplyEnabled *bool  `json:"autoReplyEnabled"`
}

type channelResponse struct {
	ID               string `json:"id"`
	TenantID         string `json:"tenantId"`
	Type             string `json:"type"`
	PlatformPageID   string `json:"platformPageId"`
	AutoReplyEnabled bool   `json:"autoReplyEnabled"`
	Status           string `json:"status"`
}

// connect stores (or refreshes) a channel connection. The access token is
// sealed before it touches the database and never returned.
func (h *ChannelHandler) connect(c *gin.Context) {
	var req connectChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(c, apperr.Validation(err.Error()))
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		respondError(c, apperr.Validation("invalid tenant id"))
		return
	}

	sealed, err := h.vault.Seal(req.AccessToken)
	if err != nil {
		respondError(c, err)
		return
	}

	autoReply := true
	if req.AutoReplyEnabled != nil {
		autoReply = *req.AutoReplyEnabled
	}

	channel := &channels.Channel{
		ID:               uuid.New(),
		TenantID:         tenantID,
		Type:             req.Type,
		PlatformPageID:   req.PlatformPageID,
		AccessTokenEnc:   sealed,
		AutoReplyEnabled: autoReply,
		Status:           "ACTIVE",
	}
	if err := h.repo.Upsert(c.Request.Context(), channel); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toChannelResponse(channel))
}

type updateChannelStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE PAUSED DISCONNECTED"`
}

func (h *ChannelHandler) updateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Validation("invalid channel id"))
		return
	}

	var req updateChannelStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(c, apperr.Validation(err.Error()))
		return
	}

	if err := h.repo.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toChannelResponse(ch *channels.Channel) channelResponse {
	return channelResponse{
		ID:               ch.ID.String(),
		TenantID:         ch.TenantID.String(),
		Type:             ch.Type,
		PlatformPageID:   ch.PlatformPageID,
		AutoReplyEnabled: ch.AutoReplyEnabled,
		Status:           ch.Status,
	}
}
