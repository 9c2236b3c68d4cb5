// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/google/uuid"

	"replyforce_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// MessageProcessed is published after a pipeline cycle persisted its results.
type MessageProcessed struct {
	BaseEvent
	TenantID       uuid.UUID `json:"tenantId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Channel        string    `json:"channel"`
	LeadTag        string    `json:"leadTag"`
	LeadScore      int       `json:"leadScore"`
	AutoReplied    bool      `json:"autoReplied"`
	Preview        string    `json:"preview"`
}

func (e MessageProcessed) EventName() string { return "pipeline.message.processed" }

// ConversationEscalated is published when a cycle ends with a forced human
// handoff. The notification module emails the tenant.
type ConversationEscalated struct {
	BaseEvent
	TenantID       uuid.UUID `json:"tenantId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Channel        string    `json:"channel"`
	SenderName     string    `json:"senderName"`
	Reason         string    `json:"reason"`
	Preview        string    `json:"preview"`
}

func (e ConversationEscalated) EventName() string { return "pipeline.conversation.escalated" }

// LeadBecameHot is published when a lead crosses into the HOT bucket.
type LeadBecameHot struct {
	BaseEvent
	TenantID  uuid.UUID `json:"tenantId"`
	LeadID    uuid.UUID `json:"leadId"`
	ContactID uuid.UUID `json:"contactId"`
	Score     int       `json:"score"`
	Intent    string    `json:"intent"`
}

func (e LeadBecameHot) EventName() string { return "leads.became_hot" }

// MessageBlocked is published when the inbound guardrail drops a message.
type MessageBlocked struct {
	BaseEvent
	TenantID          uuid.UUID `json:"tenantId"`
	Channel           string    `json:"channel"`
	PlatformMessageID string    `json:"platformMessageId"`
	Reason            string    `json:"reason"`
	RiskScore         float64   `json:"riskScore"`
}

func (e MessageBlocked) EventName() string { return "pipeline.message.blocked" }
