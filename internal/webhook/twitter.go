package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"replyforce_backend/internal/queue"
)

type twitterEnvelope struct {
	ForUserID           string           `json:"for_user_id"`
	DirectMessageEvents []twitterDMEvent `json:"direct_message_events"`
	Users               map[string]struct {
		Name string `json:"name"`
	} `json:"users"`
}

type twitterDMEvent struct {
	Type             string `json:"type"`
	ID               string `json:"id"`
	CreatedTimestamp string `json:"created_timestamp"`
	MessageCreate    *struct {
		SenderID string `json:"sender_id"`
		Target   struct {
			RecipientID string `json:"recipient_id"`
		} `json:"target"`
		MessageData struct {
			Text       string `json:"text"`
			Attachment *struct {
				Type  string `json:"type"`
				Media struct {
					Type     string `json:"type"`
					MediaURL string `json:"media_url_https"`
				} `json:"media"`
			} `json:"attachment"`
		} `json:"message_data"`
	} `json:"message_create"`
}

// twitterCRC answers the challenge-response check Twitter sends to prove
// webhook ownership.
func (h *Handler) twitterCRC(c *gin.Context) {
	crcToken := c.Query("crc_token")
	if crcToken == "" {
		c.String(http.StatusBadRequest, "missing crc_token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response_token": twitterResponseToken(h.cfg.GetTwitterConsumerSecret(), crcToken),
	})
}

// receiveTwitter accepts account activity deliveries carrying direct messages.
func (h *Handler) receiveTwitter(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "unreadable body")
		return
	}
	if !validTwitterSignature(h.cfg.GetTwitterConsumerSecret(), body, c.GetHeader("x-twitter-webhooks-signature")) {
		h.log.Warn("twitter webhook signature rejected")
		c.String(http.StatusForbidden, "invalid signature")
		return
	}

	var envelope twitterEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.String(http.StatusBadRequest, "malformed payload")
		return
	}

	h.enqueueAll(c, normalizeTwitter(envelope))
	c.String(http.StatusOK, "EVENT_RECEIVED")
}

// normalizeTwitter flattens DM events, skipping messages the account sent
// itself.
func normalizeTwitter(envelope twitterEnvelope) []queue.InboundMessagePayload {
	var out []queue.InboundMessagePayload
	for _, event := range envelope.DirectMessageEvents {
		mc := event.MessageCreate
		if event.Type != "message_create" || mc == nil {
			continue
		}
		if mc.SenderID == envelope.ForUserID {
			continue
		}

		payload := queue.InboundMessagePayload{
			Channel:           "TWITTER",
			PlatformPageID:    envelope.ForUserID,
			PlatformMessageID: event.ID,
			SenderID:          mc.SenderID,
			SenderName:        envelope.Users[mc.SenderID].Name,
			Text:              mc.MessageData.Text,
			ContentType:       "TEXT",
			Timestamp:         twitterTime(event.CreatedTimestamp),
		}
		if att := mc.MessageData.Attachment; att != nil && att.Type == "media" {
			payload.ContentType = twitterMediaContentType(att.Media.Type)
			payload.MediaURL = att.Media.MediaURL
		}
		out = append(out, payload)
	}
	return out
}

func twitterMediaContentType(mediaType string) string {
	switch mediaType {
	case "photo":
		return "IMAGE"
	case "video", "animated_gif":
		return "VIDEO"
	default:
		return "TEXT"
	}
}

func twitterTime(epochMillis string) time.Time {
	ms, err := strconv.ParseInt(epochMillis, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
