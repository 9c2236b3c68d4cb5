// Package pipeline implements the core decision pipeline that turns one
// inbound social-media message into a structured understanding, risk
// assessment, lead score, and optionally an auto-generated reply.
//
// The pipeline owns no durable state: every invocation receives an immutable
// Input snapshot resolved by the caller and returns a complete Output. All
// generative-call failures degrade to deterministic fallbacks; Process never
// returns an error.
package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the originating social platform.
type Channel string

const (
	ChannelFacebook  Channel = "FACEBOOK"
	ChannelInstagram Channel = "INSTAGRAM"
	ChannelWhatsApp  Channel = "WHATSAPP"
	ChannelTwitter   Channel = "TWITTER"
)

// ContentType describes the inbound message payload.
type ContentType string

const (
	ContentText  ContentType = "TEXT"
	ContentImage ContentType = "IMAGE"
	ContentVideo ContentType = "VIDEO"
	ContentAudio ContentType = "AUDIO"
)

// TurnRole identifies who authored a conversation turn.
type TurnRole string

const (
	RoleContact    TurnRole = "contact"
	RoleAIBot      TurnRole = "ai_bot"
	RoleHumanAgent TurnRole = "human_agent"
)

// Turn is one prior message in the conversation, oldest first in Input.History.
type Turn struct {
	Role      TurnRole
	Content   string
	Timestamp time.Time
}

// BrandVoice carries the tenant's persona configuration for reply generation.
type BrandVoice struct {
	CompanyName    string
	Tone           string
	Style          string
	Guidelines     string
	KnowledgeBase  string
	MaxReplyLength int
	UseEmojis      bool
	Language       string
}

// LeadSnapshot is the prior lead state resolved by the caller before invocation.
type LeadSnapshot struct {
	Tag     LeadTag
	Score   int
	Signals []string
}

// Input is the immutable snapshot for one decision cycle.
type Input struct {
	MessageID      uuid.UUID
	TenantID       uuid.UUID
	ConversationID uuid.UUID
	Channel        Channel

	Text        string
	ContentType ContentType
	MediaURL    string
	SenderID    string
	SenderName  string
	Timestamp   time.Time

	History   []Turn
	Brand     BrandVoice
	PriorLead *LeadSnapshot
}

// Topic is the closed set of message topics.
type Topic string

const (
	TopicPricing   Topic = "pricing"
	TopicSupport   Topic = "support"
	TopicComplaint Topic = "complaint"
	TopicInquiry   Topic = "inquiry"
	TopicFeedback  Topic = "feedback"
	TopicGreeting  Topic = "greeting"
	TopicOther     Topic = "other"
)

// EntityKind is the closed set of extracted entity kinds.
type EntityKind string

const (
	EntityProduct  EntityKind = "product"
	EntityPerson   EntityKind = "person"
	EntityCompany  EntityKind = "company"
	EntityLocation EntityKind = "location"
	EntityPrice    EntityKind = "price"
	EntityDate     EntityKind = "date"
)

// Entity is one extracted (kind, value) pair.
type Entity struct {
	Kind  EntityKind `json:"type"`
	Value string     `json:"value"`
}

// Classification is the structured understanding of one message.
// Produced exactly once per cycle; immutable after creation.
type Classification struct {
	Language   string   `json:"language"`
	Entities   []Entity `json:"entities"`
	Topic      Topic    `json:"topic"`
	IsQuestion bool     `json:"isQuestion"`
	Summary    string   `json:"summary"`
	KeyPhrases []string `json:"keyPhrases"`
}

// Sentiment is the closed set of sentiment categories.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// Urgency is the closed set of urgency levels.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// SentimentResult is the emotional read of one message.
// Emotions is never empty; it falls back to ["neutral"].
type SentimentResult struct {
	Sentiment Sentiment `json:"sentiment"`
	Score     float64   `json:"score"`
	Urgency   Urgency   `json:"urgency"`
	Emotions  []string  `json:"emotions"`
}

// LeadTag is the lead temperature bucket.
type LeadTag string

const (
	TagHot  LeadTag = "HOT"
	TagWarm LeadTag = "WARM"
	TagCold LeadTag = "COLD"
)

// LeadScore is the deterministic purchase-intent assessment. Signals preserve
// rule evaluation order and form the audit trail for the score.
type LeadScore struct {
	Intent            string   `json:"intent"`
	Confidence        float64  `json:"confidence"`
	Score             int      `json:"score"`
	Tag               LeadTag  `json:"tag"`
	Signals           []string `json:"signals"`
	RecommendedAction string   `json:"recommendedAction"`
}

// GuardrailVerdict is the outcome of one safety evaluation. Two independent
// verdicts exist per cycle: inbound text and generated reply.
type GuardrailVerdict struct {
	Passed        bool     `json:"passed"`
	Flags         []string `json:"flags"`
	RiskScore     float64  `json:"riskScore"`
	BlockedReason string   `json:"blockedReason,omitempty"`
}

// Reply is the generated (or templated, or fallback) response.
type Reply struct {
	Text             string   `json:"text"`
	Confidence       float64  `json:"confidence"`
	RequiresHuman    bool     `json:"requiresHuman"`
	SuggestedActions []string `json:"suggestedActions"`
	TokensUsed       int      `json:"tokensUsed"`
}

// State names a position in the pipeline state machine. Blocked and Escalated
// are the only early-exit terminals; Completed is the only success terminal.
type State string

const (
	StateStart            State = "Start"
	StateBlocked          State = "Blocked"
	StateParallelAnalysis State = "ParallelAnalysis"
	StateScored           State = "Scored"
	StateEscalated        State = "Escalated"
	StateGenerated        State = "Generated"
	StateGuardedOutput    State = "GuardedOutput"
	StateCompleted        State = "Completed"
)

// Output aggregates every result of one decision cycle. This is the unit the
// ingestion coordinator persists and broadcasts.
type Output struct {
	State           State            `json:"state"`
	GuardrailInput  GuardrailVerdict `json:"guardrailInput"`
	Classification  Classification   `json:"understanding"`
	Sentiment       SentimentResult  `json:"sentiment"`
	Lead            LeadScore        `json:"leadScore"`
	Reply           Reply            `json:"reply"`
	GuardrailOutput GuardrailVerdict `json:"guardrailOutput"`
	Duration        time.Duration    `json:"-"`
	DurationMs      int64            `json:"processingTimeMs"`
	TokensUsed      int              `json:"tokensUsed"`
}
