package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"replyforce_backend/platform/ai"
	"replyforce_backend/platform/logger"
)

// ReplyGenerator produces the customer-facing response. Trivial messages are
// served from templates at zero cost; everything else goes through one
// grounded generative call. A call failure yields a brand-substituted apology
// with forced human escalation, never a raw error.
type ReplyGenerator struct {
	svc         ai.CallService
	model       string
	temperature float64
	maxTokens   int
	log         *logger.Logger
}

// NewReplyGenerator creates the reply generator. Model should be the primary
// quality tier; this text is read by customers.
func NewReplyGenerator(svc ai.CallService, model string, temperature float64, maxTokens int, log *logger.Logger) *ReplyGenerator {
	return &ReplyGenerator{svc: svc, model: model, temperature: temperature, maxTokens: maxTokens, log: log}
}

var (
	thanksPattern  = regexp.MustCompile(`(?i)^(thank|thanks|thx|ty)\b`)
	hedgingPattern = regexp.MustCompile(`(?i)I'm not sure|I don't know|I cannot`)
)

const thanksTemplate = "You're welcome! If you need anything else, don't hesitate to reach out. We're here to help!"

var greetingTemplates = []string{
	"Hi there! Welcome to %s. How can I help you today?",
	"Hello! Thanks for reaching out to %s. What can I assist you with?",
	"Hey! Great to hear from you. How can %s help you today?",
}

// Generate returns a complete Reply for every input.
func (g *ReplyGenerator) Generate(ctx context.Context, in Input, cls Classification, sent SentimentResult, lead LeadScore) Reply {
	if reply, ok := templateReply(in, cls); ok {
		return reply
	}

	return generateWithFallback(ctx,
		func(ctx context.Context) (Reply, error) {
			return g.generative(ctx, in, cls, sent, lead)
		},
		func(err error) Reply {
			g.log.GenerativeCallFailed("reply", err)
			return Reply{
				Text:             fmt.Sprintf("Thank you for reaching out to %s! A team member will get back to you shortly.", in.Brand.CompanyName),
				Confidence:       0.3,
				RequiresHuman:    true,
				SuggestedActions: []string{"escalate_to_human"},
				TokensUsed:       0,
			}
		},
	)
}

// templateReply short-circuits pure greetings and bare thank-you messages.
func templateReply(in Input, cls Classification) (Reply, bool) {
	if cls.Topic == TopicGreeting && !cls.IsQuestion {
		template := greetingTemplates[rand.IntN(len(greetingTemplates))]
		return Reply{
			Text:             fmt.Sprintf(template, in.Brand.CompanyName),
			Confidence:       0.95,
			RequiresHuman:    false,
			SuggestedActions: []string{},
			TokensUsed:       0,
		}, true
	}

	if thanksPattern.MatchString(in.Text) && !cls.IsQuestion {
		return Reply{
			Text:             thanksTemplate,
			Confidence:       0.95,
			RequiresHuman:    false,
			SuggestedActions: []string{},
			TokensUsed:       0,
		}, true
	}

	return Reply{}, false
}

func (g *ReplyGenerator) generative(ctx context.Context, in Input, cls Classification, sent SentimentResult, lead LeadScore) (Reply, error) {
	messages := make([]ai.Message, 0, 6)
	for _, turn := range lastTurns(in.History, 5) {
		role := ai.RoleAssistant
		if turn.Role == RoleContact {
			role = ai.RoleUser
		}
		messages = append(messages, ai.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: in.Text})

	resp, err := g.svc.Complete(ctx, ai.Request{
		Model:       g.model,
		System:      buildReplyPrompt(in, cls, sent, lead),
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return Reply{}, err
	}

	text := strings.TrimSpace(resp.Text)
	confidence := replyConfidence(text, cls.Topic, resp.Truncated)

	return Reply{
		Text:             text,
		Confidence:       confidence,
		RequiresHuman:    confidence < 0.5,
		SuggestedActions: suggestedActions(lead, cls),
		TokensUsed:       resp.TotalTokens(),
	}, nil
}

func buildReplyPrompt(in Input, cls Classification, sent SentimentResult, lead LeadScore) string {
	guidelines := in.Brand.Guidelines
	if guidelines == "" {
		guidelines = "None specified"
	}
	knowledgeBase := in.Brand.KnowledgeBase
	if knowledgeBase == "" {
		knowledgeBase = "No specific knowledge base provided."
	}
	emojis := "not allowed"
	if in.Brand.UseEmojis {
		emojis = "allowed"
	}

	return strings.NewReplacer(
		"{company_name}", in.Brand.CompanyName,
		"{tone}", in.Brand.Tone,
		"{style}", in.Brand.Style,
		"{guidelines}", guidelines,
		"{max_reply_length}", strconv.Itoa(in.Brand.MaxReplyLength),
		"{language}", in.Brand.Language,
		"{channel}", string(in.Channel),
		"{use_emojis}", emojis,
		"{knowledge_base}", knowledgeBase,
		"{topic}", string(cls.Topic),
		"{sentiment}", string(sent.Sentiment),
		"{urgency}", string(sent.Urgency),
		"{lead_tag}", string(lead.Tag),
		"{intent}", lead.Intent,
	).Replace(autoReplyPrompt)
}

// replyConfidence starts at a 0.8 base and adjusts for reply shape, topic
// difficulty, and truncation. Clamped to [0.1, 1].
func replyConfidence(text string, topic Topic, truncated bool) float64 {
	confidence := 0.8

	if len(text) < 20 {
		confidence -= 0.2
	}
	if hedgingPattern.MatchString(text) {
		confidence -= 0.2
	}

	switch topic {
	case TopicComplaint:
		confidence -= 0.1
	case TopicSupport:
		confidence -= 0.05
	case TopicGreeting:
		confidence += 0.15
	case TopicFeedback:
		confidence += 0.1
	}

	if truncated {
		confidence -= 0.15
	}

	return clampFloat(confidence, 0.1, 1)
}

// suggestedActions derives follow-ups from the lead tag and topic,
// independently of reply confidence.
func suggestedActions(lead LeadScore, cls Classification) []string {
	actions := []string{}
	if lead.Tag == TagHot {
		actions = append(actions, "notify_sales_team", "schedule_follow_up")
	}
	if cls.Topic == TopicPricing {
		actions = append(actions, "send_pricing_info")
	}
	if cls.Topic == TopicComplaint {
		actions = append(actions, "create_support_ticket", "escalate_if_unresolved")
	}
	return actions
}
