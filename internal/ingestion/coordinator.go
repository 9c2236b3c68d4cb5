// Package ingestion turns a normalized platform event into one completed
// pipeline cycle: dedup, state resolution, pipeline invocation, persistence,
// and fan-out to delivery, CRM sync, and realtime listeners.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"replyforce_backend/internal/channels"
	"replyforce_backend/internal/email"
	"replyforce_backend/internal/events"
	"replyforce_backend/internal/notification/sse"
	"replyforce_backend/internal/pipeline"
	"replyforce_backend/internal/queue"
	"replyforce_backend/platform/apperr"
	"replyforce_backend/platform/logger"
	"replyforce_backend/platform/sanitize"
)

// Platforms redeliver webhook events; a processed message id stays claimed
// for this long.
const dedupTTL = 24 * time.Hour

const previewMaxRunes = 120

// channelResolver maps an inbound event to the connected channel that owns it.
type channelResolver interface {
	GetByPlatformPage(ctx context.Context, channelType, platformPageID string) (*channels.Channel, error)
}

// conversationStore is the persistence surface the coordinator needs around
// one cycle. *Repository implements it.
type conversationStore interface {
	GetOrCreateContact(ctx context.Context, tenantID uuid.UUID, channel, platformID, name string) (*Contact, error)
	GetOrCreateConversation(ctx context.Context, tenantID, channelID, contactID uuid.UUID) (*Conversation, error)
	InsertInboundMessage(ctx context.Context, conversationID uuid.UUID, content, contentType, platformMsgID, mediaURL string, at time.Time) (uuid.UUID, error)
	InsertReplyMessage(ctx context.Context, conversationID uuid.UUID, content string, confidence float64) (uuid.UUID, error)
	AnnotateMessage(ctx context.Context, messageID uuid.UUID, analysis []byte, confidence float64) error
	SetMediaURL(ctx context.Context, messageID uuid.UUID, mediaURL string) error
	RecentTurns(ctx context.Context, conversationID, excludeMessageID uuid.UUID, n int) ([]pipeline.Turn, error)
	GetBrandVoice(ctx context.Context, tenantID uuid.UUID) (pipeline.BrandVoice, error)
	GetLeadSnapshot(ctx context.Context, contactID uuid.UUID) (*pipeline.LeadSnapshot, error)
	UpsertLead(ctx context.Context, tenantID, contactID uuid.UUID, lead pipeline.LeadScore) (uuid.UUID, error)
	FinishConversationCycle(ctx context.Context, conversationID uuid.UUID, status, preview string, at time.Time, newMessages int) error
	AttachLead(ctx context.Context, conversationID, leadID uuid.UUID) error
	GetTokenBudget(ctx context.Context, tenantID uuid.UUID) (*TokenBudget, error)
	AddTokenUsage(ctx context.Context, tenantID uuid.UUID, tokens int) error
	GetNotificationEmail(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// messageProcessor runs one decision cycle. *pipeline.Orchestrator implements it.
type messageProcessor interface {
	Process(ctx context.Context, in pipeline.Input) pipeline.Output
}

// updatePublisher pushes realtime conversation updates. *sse.Publisher
// implements it.
type updatePublisher interface {
	Publish(ctx context.Context, update sse.ConversationUpdate) error
}

// Coordinator handles inbound.message tasks.
type Coordinator struct {
	rdb       *redis.Client
	channels  channelResolver
	store     conversationStore
	processor messageProcessor
	enqueuer  queue.Enqueuer
	bus       events.Bus
	realtime  updatePublisher
	archiver  MediaArchiver
	notifier  email.EscalationNotifier
	log       *logger.Logger
}

// NewCoordinator wires the worker-side ingestion path. archiver may be nil
// (media archiving disabled).
func NewCoordinator(
	rdb *redis.Client,
	channelRepo channelResolver,
	store conversationStore,
	processor messageProcessor,
	enqueuer queue.Enqueuer,
	bus events.Bus,
	realtime updatePublisher,
	archiver MediaArchiver,
	notifier email.EscalationNotifier,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		rdb:       rdb,
		channels:  channelRepo,
		store:     store,
		processor: processor,
		enqueuer:  enqueuer,
		bus:       bus,
		realtime:  realtime,
		archiver:  archiver,
		notifier:  notifier,
		log:       log,
	}
}

// ProcessInbound runs one full cycle for one platform event. Returning an
// error hands the task back to the queue for retry; the dedup claim is
// released first so the retry is not silently dropped.
func (c *Coordinator) ProcessInbound(ctx context.Context, payload queue.InboundMessagePayload) (retErr error) {
	dedupKey := fmt.Sprintf("dedup:%s:%s", payload.Channel, payload.PlatformMessageID)
	claimed, err := c.rdb.SetNX(ctx, dedupKey, "1", dedupTTL).Result()
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if !claimed {
		c.log.Debug("duplicate platform event dropped",
			"channel", payload.Channel,
			"platform_msg_id", payload.PlatformMessageID,
		)
		return nil
	}
	defer func() {
		if retErr != nil {
			c.rdb.Del(context.WithoutCancel(ctx), dedupKey)
		}
	}()

	channel, err := c.channels.GetByPlatformPage(ctx, payload.Channel, payload.PlatformPageID)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Event for a page nobody connected; permanent, do not retry.
			c.log.Warn("event for unconnected page dropped",
				"channel", payload.Channel,
				"platform_page_id", payload.PlatformPageID,
			)
			return nil
		}
		return err
	}
	if channel.Status != "ACTIVE" {
		c.log.Info("event for inactive channel dropped",
			"channel_id", channel.ID.String(),
			"status", channel.Status,
		)
		return nil
	}

	log := c.log.WithTenant(channel.TenantID.String())

	contact, err := c.store.GetOrCreateContact(ctx, channel.TenantID, payload.Channel, payload.SenderID, payload.SenderName)
	if err != nil {
		return err
	}
	conv, err := c.store.GetOrCreateConversation(ctx, channel.TenantID, channel.ID, contact.ID)
	if err != nil {
		return err
	}

	at := payload.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	messageID, err := c.store.InsertInboundMessage(ctx, conv.ID, payload.Text, payload.ContentType, payload.PlatformMessageID, payload.MediaURL, at)
	if err != nil {
		return err
	}

	if payload.MediaURL != "" {
		c.archiveMedia(ctx, channel.TenantID, messageID, payload, log)
	}

	history, err := c.store.RecentTurns(ctx, conv.ID, messageID, 10)
	if err != nil {
		return err
	}
	brand, err := c.store.GetBrandVoice(ctx, channel.TenantID)
	if err != nil {
		return err
	}
	prior, err := c.store.GetLeadSnapshot(ctx, contact.ID)
	if err != nil {
		return err
	}
	budget, err := c.store.GetTokenBudget(ctx, channel.TenantID)
	if err != nil {
		return err
	}
	if budget.Exhausted() {
		log.Warn("daily token budget exhausted",
			"daily_limit", budget.DailyLimit,
			"current_usage", budget.CurrentDailyUsage,
		)
	}

	out := c.processor.Process(ctx, pipeline.Input{
		MessageID:      messageID,
		TenantID:       channel.TenantID,
		ConversationID: conv.ID,
		Channel:        pipeline.Channel(payload.Channel),
		Text:           payload.Text,
		ContentType:    pipeline.ContentType(payload.ContentType),
		MediaURL:       payload.MediaURL,
		SenderID:       contact.PlatformID,
		SenderName:     payload.SenderName,
		Timestamp:      at,
		History:        history,
		Brand:          brand,
		PriorLead:      prior,
	})

	if err := c.store.AnnotateMessage(ctx, messageID, marshalAnalysis(out), out.Reply.Confidence); err != nil {
		log.DatabaseError("annotate message", err)
	}
	if err := c.store.AddTokenUsage(ctx, channel.TenantID, out.TokensUsed); err != nil {
		log.DatabaseError("add token usage", err)
	}

	preview := truncatePreview(payload.Text)

	if out.State == pipeline.StateBlocked {
		if err := c.store.FinishConversationCycle(ctx, conv.ID, conv.Status, preview, at, 1); err != nil {
			return err
		}
		c.bus.Publish(ctx, events.MessageBlocked{
			BaseEvent:         events.NewBaseEvent(),
			TenantID:          channel.TenantID,
			Channel:           payload.Channel,
			PlatformMessageID: payload.PlatformMessageID,
			Reason:            out.GuardrailInput.BlockedReason,
			RiskScore:         out.GuardrailInput.RiskScore,
		})
		log.PipelineBlocked(payload.PlatformMessageID, payload.Channel, out.GuardrailInput.BlockedReason, out.GuardrailInput.RiskScore)
		return nil
	}

	leadID, err := c.store.UpsertLead(ctx, channel.TenantID, contact.ID, out.Lead)
	if err != nil {
		return err
	}
	if err := c.store.AttachLead(ctx, conv.ID, leadID); err != nil {
		log.DatabaseError("attach lead", err)
	}
	if out.Lead.Tag == pipeline.TagHot && (prior == nil || prior.Tag != pipeline.TagHot) {
		c.bus.Publish(ctx, events.LeadBecameHot{
			BaseEvent: events.NewBaseEvent(),
			TenantID:  channel.TenantID,
			LeadID:    leadID,
			ContactID: contact.ID,
			Score:     out.Lead.Score,
			Intent:    out.Lead.Intent,
		})
	}

	autoReply := channel.AutoReplyEnabled &&
		out.State == pipeline.StateCompleted &&
		!out.Reply.RequiresHuman &&
		out.Reply.Text != ""

	status := "OPEN"
	if out.Reply.RequiresHuman {
		status = "NEEDS_HUMAN"
	}

	newMessages := 1
	if autoReply {
		replyID, err := c.store.InsertReplyMessage(ctx, conv.ID, out.Reply.Text, out.Reply.Confidence)
		if err != nil {
			return err
		}
		newMessages = 2
		if err := c.enqueuer.EnqueueOutboundSend(ctx, queue.OutboundSendPayload{
			TenantID:       channel.TenantID.String(),
			ConversationID: conv.ID.String(),
			MessageID:      replyID.String(),
			ChannelID:      channel.ID.String(),
			Channel:        payload.Channel,
			RecipientID:    contact.PlatformID,
			Text:           out.Reply.Text,
		}); err != nil {
			log.QueueError(queue.TaskOutboundSend, err)
		}
	}

	if err := c.store.FinishConversationCycle(ctx, conv.ID, status, preview, at, newMessages); err != nil {
		return err
	}

	if err := c.enqueuer.EnqueueCRMSync(ctx, queue.CRMSyncPayload{
		TenantID: channel.TenantID.String(),
		LeadID:   leadID.String(),
		Summary:  out.Classification.Summary,
	}); err != nil {
		log.QueueError(queue.TaskCRMSync, err)
	}

	if out.Reply.RequiresHuman {
		c.notifyEscalation(ctx, channel.TenantID, conv.ID, payload, out, log)
	}

	c.bus.Publish(ctx, events.MessageProcessed{
		BaseEvent:      events.NewBaseEvent(),
		TenantID:       channel.TenantID,
		ConversationID: conv.ID,
		Channel:        payload.Channel,
		LeadTag:        string(out.Lead.Tag),
		LeadScore:      out.Lead.Score,
		AutoReplied:    autoReply,
		Preview:        preview,
	})
	if err := c.realtime.Publish(ctx, sse.ConversationUpdate{
		TenantID:       channel.TenantID.String(),
		ConversationID: conv.ID.String(),
		Channel:        payload.Channel,
		Preview:        preview,
		LeadTag:        string(out.Lead.Tag),
		LeadScore:      out.Lead.Score,
		AutoReplied:    autoReply,
		RequiresHuman:  out.Reply.RequiresHuman,
		At:             at,
	}); err != nil {
		log.Error("realtime publish failed", "error", err)
	}

	log.PipelineCompleted(payload.PlatformMessageID, payload.Channel, string(out.Lead.Tag), out.Lead.Score, out.Reply.RequiresHuman, out.DurationMs, out.TokensUsed)
	return nil
}

// archiveMedia copies the attachment to durable storage. Failures keep the
// original platform url on the message row.
func (c *Coordinator) archiveMedia(ctx context.Context, tenantID, messageID uuid.UUID, payload queue.InboundMessagePayload, log *logger.Logger) {
	if c.archiver == nil {
		return
	}
	objectKey, err := c.archiver.Archive(ctx, tenantID, messageID, payload.MediaURL, payload.ContentType)
	if err != nil {
		log.Warn("media archive failed",
			"message_id", messageID.String(),
			"error", err.Error(),
		)
		return
	}
	if err := c.store.SetMediaURL(ctx, messageID, objectKey); err != nil {
		log.DatabaseError("set archived media url", err)
	}
}

func (c *Coordinator) notifyEscalation(ctx context.Context, tenantID, conversationID uuid.UUID, payload queue.InboundMessagePayload, out pipeline.Output, log *logger.Logger) {
	c.bus.Publish(ctx, events.ConversationEscalated{
		BaseEvent:      events.NewBaseEvent(),
		TenantID:       tenantID,
		ConversationID: conversationID,
		Channel:        payload.Channel,
		SenderName:     payload.SenderName,
		Reason:         escalationReason(out),
		Preview:        truncatePreview(payload.Text),
	})

	if c.notifier == nil {
		return
	}
	toEmail, err := c.store.GetNotificationEmail(ctx, tenantID)
	if err != nil {
		log.DatabaseError("load notification email", err)
		return
	}
	if err := c.notifier.SendEscalationEmail(ctx, toEmail, email.EscalationData{
		Channel:      payload.Channel,
		SenderName:   payload.SenderName,
		Reason:       escalationReason(out),
		Preview:      truncatePreview(payload.Text),
		Conversation: conversationID.String(),
	}); err != nil {
		log.Error("escalation email failed", "error", err.Error())
	}
}

func escalationReason(out pipeline.Output) string {
	if out.State == pipeline.StateEscalated {
		return "Conversation matched an escalation rule"
	}
	return "Auto-reply confidence below the send threshold"
}

func marshalAnalysis(out pipeline.Output) []byte {
	data, err := json.Marshal(out)
	if err != nil {
		return []byte("{}")
	}
	return data
}

var (
	_ conversationStore = (*Repository)(nil)
	_ channelResolver   = (*channels.Repository)(nil)
	_ messageProcessor  = (*pipeline.Orchestrator)(nil)
	_ updatePublisher   = (*sse.Publisher)(nil)
)

func truncatePreview(text string) string {
	return sanitize.Preview(text, previewMaxRunes)
}
