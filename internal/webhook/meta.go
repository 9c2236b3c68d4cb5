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

// metaEnvelope covers the three Meta webhook objects: Messenger pages,
// Instagram accounts, and WhatsApp business accounts.
type metaEnvelope struct {
	Object string      `json:"object"`
	Entry  []metaEntry `json:"entry"`
}

type metaEntry struct {
	ID        string           `json:"id"`
	Messaging []metaMessaging  `json:"messaging"`
	Changes   []whatsappChange `json:"changes"`
}

type metaMessaging struct {
	Sender    metaParty    `json:"sender"`
	Recipient metaParty    `json:"recipient"`
	Timestamp int64        `json:"timestamp"`
	Message   *metaMessage `json:"message"`
}

type metaParty struct {
	ID string `json:"id"`
}

type metaMessage struct {
	MID         string           `json:"mid"`
	Text        string           `json:"text"`
	IsEcho      bool             `json:"is_echo"`
	Attachments []metaAttachment `json:"attachments"`
}

type metaAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

type whatsappChange struct {
	Field string        `json:"field"`
	Value whatsappValue `json:"value"`
}

type whatsappValue struct {
	Metadata struct {
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		WAID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []whatsappMessage `json:"messages"`
}

type whatsappMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
	Image *whatsappMedia `json:"image"`
	Video *whatsappMedia `json:"video"`
	Audio *whatsappMedia `json:"audio"`
}

type whatsappMedia struct {
	Link    string `json:"link"`
	Caption string `json:"caption"`
}

// verifyMeta answers the subscription handshake.
func (h *Handler) verifyMeta(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token == "" || token != h.cfg.GetMetaVerifyToken() {
		c.String(http.StatusForbidden, "verification failed")
		return
	}
	c.String(http.StatusOK, challenge)
}

// receiveMeta accepts signed webhook deliveries for all three Meta surfaces.
// Always returns 200 on valid signatures; retries are handled queue-side.
func (h *Handler) receiveMeta(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "unreadable body")
		return
	}
	if !validMetaSignature(h.cfg.GetMetaAppSecret(), body, c.GetHeader("X-Hub-Signature-256")) {
		h.log.Warn("meta webhook signature rejected")
		c.String(http.StatusForbidden, "invalid signature")
		return
	}

	var envelope metaEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.String(http.StatusBadRequest, "malformed payload")
		return
	}

	h.enqueueAll(c, normalizeMeta(envelope))
	c.String(http.StatusOK, "EVENT_RECEIVED")
}

// normalizeMeta flattens a Meta envelope into inbound queue payloads. Echoes
// of the page's own messages are skipped.
func normalizeMeta(envelope metaEnvelope) []queue.InboundMessagePayload {
	var channel string
	switch envelope.Object {
	case "page":
		channel = "FACEBOOK"
	case "instagram":
		channel = "INSTAGRAM"
	case "whatsapp_business_account":
		return normalizeWhatsApp(envelope)
	default:
		return nil
	}

	var out []queue.InboundMessagePayload
	for _, entry := range envelope.Entry {
		for _, event := range entry.Messaging {
			msg := event.Message
			if msg == nil || msg.IsEcho || msg.MID == "" {
				continue
			}

			payload := queue.InboundMessagePayload{
				Channel:           channel,
				PlatformPageID:    event.Recipient.ID,
				PlatformMessageID: msg.MID,
				SenderID:          event.Sender.ID,
				Text:              msg.Text,
				ContentType:       "TEXT",
				Timestamp:         time.UnixMilli(event.Timestamp),
			}
			if len(msg.Attachments) > 0 {
				payload.ContentType = attachmentContentType(msg.Attachments[0].Type)
				payload.MediaURL = msg.Attachments[0].Payload.URL
			}
			out = append(out, payload)
		}
	}
	return out
}

func normalizeWhatsApp(envelope metaEnvelope) []queue.InboundMessagePayload {
	var out []queue.InboundMessagePayload
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(change.Value.Contacts))
			for _, contact := range change.Value.Contacts {
				names[contact.WAID] = contact.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				payload := queue.InboundMessagePayload{
					Channel:           "WHATSAPP",
					PlatformPageID:    change.Value.Metadata.PhoneNumberID,
					PlatformMessageID: msg.ID,
					SenderID:          msg.From,
					SenderName:        names[msg.From],
					Text:              msg.Text.Body,
					ContentType:       "TEXT",
					Timestamp:         whatsappTime(msg.Timestamp),
				}
				switch {
				case msg.Image != nil:
					payload.ContentType = "IMAGE"
					payload.MediaURL = msg.Image.Link
					payload.Text = firstNonEmpty(msg.Image.Caption, payload.Text)
				case msg.Video != nil:
					payload.ContentType = "VIDEO"
					payload.MediaURL = msg.Video.Link
					payload.Text = firstNonEmpty(msg.Video.Caption, payload.Text)
				case msg.Audio != nil:
					payload.ContentType = "AUDIO"
					payload.MediaURL = msg.Audio.Link
				}
				out = append(out, payload)
			}
		}
	}
	return out
}

func attachmentContentType(attachmentType string) string {
	switch attachmentType {
	case "image":
		return "IMAGE"
	case "video":
		return "VIDEO"
	case "audio":
		return "AUDIO"
	default:
		return "TEXT"
	}
}

func whatsappTime(epochSeconds string) time.Time {
	secs, err := strconv.ParseInt(epochSeconds, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(secs, 0)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
