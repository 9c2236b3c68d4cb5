// Package queue defines the asynq task types that connect the webhook layer,
// the decision pipeline, outbound delivery, and CRM synchronization. Tasks
// carry identifiers and raw payload fields only; handlers resolve state from
// storage so retries always see fresh data.
package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskInboundMessage = "inbound.message"
	TaskOutboundSend   = "outbound.send"
	TaskCRMSync        = "crm.sync"
)

// Queue names. Each runs with its own concurrency weight.
const (
	QueueInbound  = "inbound"
	QueueOutbound = "outbound"
	QueueCRM      = "crm"
)

// InboundMessagePayload is one normalized platform event awaiting a pipeline
// run. The webhook layer stays storage-free: the coordinator resolves the
// owning channel and tenant from (channel, platformPageId).
// PlatformMessageID is the dedup key.
type InboundMessagePayload struct {
	Channel           string    `json:"channel"`
	PlatformPageID    string    `json:"platformPageId"`
	PlatformMessageID string    `json:"platformMessageId"`
	SenderID          string    `json:"senderId"`
	SenderName        string    `json:"senderName,omitempty"`
	Text              string    `json:"text"`
	ContentType       string    `json:"contentType"`
	MediaURL          string    `json:"mediaUrl,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// OutboundSendPayload is one approved reply awaiting delivery to the
// originating platform.
type OutboundSendPayload struct {
	TenantID       string `json:"tenantId"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	ChannelID      string `json:"channelId"`
	Channel        string `json:"channel"`
	RecipientID    string `json:"recipientId"`
	Text           string `json:"text"`
}

// CRMSyncPayload requests synchronization of one lead to the tenant's CRM.
type CRMSyncPayload struct {
	TenantID string `json:"tenantId"`
	LeadID   string `json:"leadId"`
	Summary  string `json:"summary,omitempty"`
}

func NewInboundMessageTask(payload InboundMessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInboundMessage, data), nil
}

func ParseInboundMessagePayload(task *asynq.Task) (InboundMessagePayload, error) {
	var payload InboundMessagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return InboundMessagePayload{}, err
	}
	return payload, nil
}

func NewOutboundSendTask(payload OutboundSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutboundSend, data), nil
}

func ParseOutboundSendPayload(task *asynq.Task) (OutboundSendPayload, error) {
	var payload OutboundSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OutboundSendPayload{}, err
	}
	return payload, nil
}

func NewCRMSyncTask(payload CRMSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCRMSync, data), nil
}

func ParseCRMSyncPayload(task *asynq.Task) (CRMSyncPayload, error) {
	var payload CRMSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CRMSyncPayload{}, err
	}
	return payload, nil
}
