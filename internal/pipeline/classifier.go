package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"replyforce_backend/platform/ai"
	"replyforce_backend/platform/logger"
)

// Classifier produces the structured understanding of a message. The primary
// path is one low-temperature structured-output generative call; every
// failure mode falls back to a keyword classifier over the raw text.
type Classifier struct {
	svc   ai.CallService
	model string
	log   *logger.Logger
}

// NewClassifier creates a classifier backed by the given call service.
// Model should be the fast/cheap tier; extraction does not need quality.
func NewClassifier(svc ai.CallService, model string, log *logger.Logger) *Classifier {
	return &Classifier{svc: svc, model: model, log: log}
}

// Classify never fails: malformed responses, timeouts, and transport errors
// all degrade to the deterministic fallback.
func (c *Classifier) Classify(ctx context.Context, in Input) Classification {
	return generateWithFallback(ctx,
		func(ctx context.Context) (Classification, error) {
			return c.generative(ctx, in)
		},
		func(err error) Classification {
			c.log.GenerativeCallFailed("classifier", err)
			return fallbackClassification(in.Text)
		},
	)
}

func (c *Classifier) generative(ctx context.Context, in Input) (Classification, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel: %s\n", in.Channel)
	fmt.Fprintf(&sb, "Company: %s\n", in.Brand.CompanyName)
	if history := lastTurns(in.History, 5); len(history) > 0 {
		sb.WriteString("\nConversation context:\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
		}
	}
	fmt.Fprintf(&sb, "\nCurrent message:\n%s", in.Text)

	resp, err := c.svc.Complete(ctx, ai.Request{
		Model:       c.model,
		System:      messageUnderstandingPrompt,
		Messages:    []ai.Message{{Role: ai.RoleUser, Content: sb.String()}},
		Temperature: 0.1,
		MaxTokens:   300,
		JSONOutput:  true,
	})
	if err != nil {
		return Classification{}, err
	}

	var parsed struct {
		Language string `json:"language"`
		Entities []struct {
			Type  string `json:"type"`
			Value any    `json:"value"`
		} `json:"entities"`
		Topic      string `json:"topic"`
		IsQuestion bool   `json:"is_question"`
		Summary    string `json:"summary"`
		KeyPhrases []any  `json:"key_phrases"`
	}
	if err := json.Unmarshal([]byte(stripJSONFence(resp.Text)), &parsed); err != nil {
		return Classification{}, fmt.Errorf("classifier: parse response: %w", err)
	}

	out := Classification{
		Language:   parsed.Language,
		Topic:      coerceTopic(parsed.Topic),
		IsQuestion: parsed.IsQuestion,
		Summary:    truncateRunes(parsed.Summary, 200),
		Entities:   []Entity{},
		KeyPhrases: []string{},
	}
	if out.Language == "" {
		out.Language = "en"
	}
	for _, e := range parsed.Entities {
		if len(out.Entities) == 5 {
			break
		}
		out.Entities = append(out.Entities, Entity{
			Kind:  EntityKind(e.Type),
			Value: stringify(e.Value),
		})
	}
	for _, p := range parsed.KeyPhrases {
		if len(out.KeyPhrases) == 5 {
			break
		}
		out.KeyPhrases = append(out.KeyPhrases, stringify(p))
	}
	return out, nil
}

var validTopics = map[Topic]bool{
	TopicPricing:   true,
	TopicSupport:   true,
	TopicComplaint: true,
	TopicInquiry:   true,
	TopicFeedback:  true,
	TopicGreeting:  true,
	TopicOther:     true,
}

func coerceTopic(raw string) Topic {
	if t := Topic(raw); validTopics[t] {
		return t
	}
	return TopicOther
}

var (
	questionPattern = regexp.MustCompile(`(?i)\?|^(what|how|when|where|why|who|which|can|could|would|do|does|is|are)\b`)

	// Ordered: the first matching topic wins.
	fallbackTopicRules = []struct {
		pattern *regexp.Regexp
		topic   Topic
	}{
		{regexp.MustCompile(`(?i)price|cost|plan|pricing|subscription|pay|fee`), TopicPricing},
		{regexp.MustCompile(`(?i)help|issue|problem|error|broken|fix|support`), TopicSupport},
		{regexp.MustCompile(`(?i)angry|terrible|worst|hate|disappointed|unacceptable`), TopicComplaint},
		{regexp.MustCompile(`(?i)tell me|info|information|details|learn|about`), TopicInquiry},
		{regexp.MustCompile(`(?i)great|love|awesome|thanks|good|excellent`), TopicFeedback},
		{regexp.MustCompile(`(?i)^(hi|hello|hey|good morning|good evening|howdy)`), TopicGreeting},
	}
)

// fallbackClassification analyzes only the current message text.
// Every field is still populated.
func fallbackClassification(text string) Classification {
	topic := TopicOther
	for _, rule := range fallbackTopicRules {
		if rule.pattern.MatchString(text) {
			topic = rule.topic
			break
		}
	}

	phrases := []string{}
	for _, word := range strings.Fields(text) {
		if len(word) > 4 {
			phrases = append(phrases, word)
			if len(phrases) == 5 {
				break
			}
		}
	}

	return Classification{
		Language:   "en",
		Entities:   []Entity{},
		Topic:      topic,
		IsQuestion: questionPattern.MatchString(text),
		Summary:    truncateRunes(text, 100),
		KeyPhrases: phrases,
	}
}

// stripJSONFence removes a markdown code fence some models wrap around JSON
// despite being told not to.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func lastTurns(history []Turn, n int) []Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
