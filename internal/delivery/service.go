// Package delivery sends approved replies back to the originating platform.
// The pipeline and coordinator never call platform APIs directly; everything
// goes through the outbound queue into this service.
package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"replyforce_backend/internal/channels"
	"replyforce_backend/internal/channels/tokenvault"
	"replyforce_backend/internal/queue"
	"replyforce_backend/platform/logger"
)

// DeliveryRecorder persists the platform message ID after a successful send.
type DeliveryRecorder interface {
	RecordDelivered(ctx context.Context, messageID uuid.UUID, platformMsgID string) error
}

// Service resolves the channel, unseals its token, and dispatches to the
// per-platform sender. The variant set is closed; unknown channel types are
// a permanent failure, not a retry.
type Service struct {
	channels *channels.Repository
	vault    *tokenvault.Vault
	recorder DeliveryRecorder
	senders  map[string]PlatformSender
	limiters map[string]*rate.Limiter
	log      *logger.Logger
}

// New wires the dispatch table. whatsappPhoneNumberID is the Cloud API sender
// number for this deployment.
func New(
	channelRepo *channels.Repository,
	vault *tokenvault.Vault,
	recorder DeliveryRecorder,
	whatsappPhoneNumberID string,
	log *logger.Logger,
) *Service {
	meta := newMetaSender()
	return &Service{
		channels: channelRepo,
		vault:    vault,
		recorder: recorder,
		senders: map[string]PlatformSender{
			"FACEBOOK":  meta,
			"INSTAGRAM": meta,
			"WHATSAPP":  newWhatsAppSender(whatsappPhoneNumberID),
			"TWITTER":   newTwitterSender(),
		},
		// Platform send APIs throttle hard; stay well under their limits.
		limiters: map[string]*rate.Limiter{
			"FACEBOOK":  rate.NewLimiter(rate.Limit(10), 20),
			"INSTAGRAM": rate.NewLimiter(rate.Limit(5), 10),
			"WHATSAPP":  rate.NewLimiter(rate.Limit(20), 40),
			"TWITTER":   rate.NewLimiter(rate.Limit(1), 5),
		},
		log: log,
	}
}

// SendOutbound handles one outbound.send task.
func (s *Service) SendOutbound(ctx context.Context, payload queue.OutboundSendPayload) error {
	channelID, err := uuid.Parse(payload.ChannelID)
	if err != nil {
		return fmt.Errorf("invalid channel id %q: %w", payload.ChannelID, err)
	}

	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if channel.Status != "ACTIVE" {
		s.log.Info("skipping delivery on inactive channel",
			"channel_id", channel.ID.String(),
			"status", channel.Status,
		)
		return nil
	}

	sender, ok := s.senders[channel.Type]
	if !ok {
		// Closed variant set; do not retry what can never succeed.
		s.log.Error("no sender for channel type", "type", channel.Type)
		return nil
	}

	token, err := s.vault.Open(channel.AccessTokenEnc)
	if err != nil {
		return fmt.Errorf("unseal channel token: %w", err)
	}

	if limiter, ok := s.limiters[channel.Type]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	platformMsgID, err := sender.Send(ctx, token, payload.RecipientID, payload.Text)
	if err != nil {
		s.log.DeliveryError(channel.Type, payload.RecipientID, err)
		return err
	}

	if messageID, parseErr := uuid.Parse(payload.MessageID); parseErr == nil && s.recorder != nil {
		if err := s.recorder.RecordDelivered(ctx, messageID, platformMsgID); err != nil {
			// The reply already reached the customer; log and move on.
			s.log.DatabaseError("record delivered", err)
		}
	}

	s.log.Info("reply delivered",
		"channel", channel.Type,
		"recipient_id", payload.RecipientID,
		"platform_msg_id", platformMsgID,
	)
	return nil
}
