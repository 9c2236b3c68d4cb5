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

// SentimentEstimator reads the emotional tone of a message. A lexicon pass
// with negation handling covers most traffic for free; only low-confidence
// reads escalate to a generative call, and an escalation failure reverts to
// the lexicon result.
type SentimentEstimator struct {
	svc   ai.CallService
	model string
	log   *logger.Logger
}

// NewSentimentEstimator creates the two-tier sentiment estimator.
func NewSentimentEstimator(svc ai.CallService, model string, log *logger.Logger) *SentimentEstimator {
	return &SentimentEstimator{svc: svc, model: model, log: log}
}

const sentimentEscalateThreshold = 0.7

var positiveWords = wordSet(
	"great", "amazing", "awesome", "excellent", "fantastic", "love", "wonderful",
	"perfect", "best", "thank", "thanks", "appreciate", "happy", "glad",
	"excited", "pleased", "helpful", "impressed", "beautiful", "brilliant",
	"outstanding", "superb", "terrific", "delighted", "enjoy", "good",
	"nice", "cool", "interesting", "recommend",
)

var negativeWords = wordSet(
	"terrible", "awful", "horrible", "worst", "hate", "angry", "frustrated",
	"disappointed", "unacceptable", "useless", "pathetic", "ridiculous",
	"disgusting", "annoying", "waste", "scam", "fraud", "broken", "bad",
	"slow", "poor", "rude", "incompetent", "never", "complaint", "refund",
	"cancel", "problem", "issue", "bug", "error", "fail", "wrong",
)

var urgencyWords = wordSet(
	"urgent", "asap", "immediately", "emergency", "critical", "now",
	"right away", "today", "hurry", "deadline", "time-sensitive",
)

var (
	tokenSplitPattern = regexp.MustCompile(`\W+`)
	// Single-word-distance negation only. "not very good" is out of scope;
	// downstream thresholds were tuned against this exact behavior.
	negationPattern = regexp.MustCompile(`(?i)\b(not|no|don't|doesn't|won't|can't|never|neither|nor|hardly|barely)\s+(\w+)`)

	gratefulPattern = regexp.MustCompile(`(?i)\b(thank|appreciate)\b`)
	confusedPattern = regexp.MustCompile(`(?i)\b(confused|don't understand|unclear)\b`)
	angryPattern    = regexp.MustCompile(`(?i)\b(angry|furious|outraged)\b`)
	capitalPattern  = regexp.MustCompile(`[A-Z]`)
)

// Estimate never fails; the lexicon tier is always available.
func (s *SentimentEstimator) Estimate(ctx context.Context, in Input) SentimentResult {
	return escalateOnLowConfidence(ctx, sentimentEscalateThreshold,
		func() (SentimentResult, float64) {
			return lexiconSentiment(in.Text)
		},
		func(ctx context.Context) (SentimentResult, error) {
			return s.generative(ctx, in.Text)
		},
	)
}

// lexiconSentiment is the deterministic tier. Confidence grows with the
// number of sentiment-word hits.
func lexiconSentiment(text string) (SentimentResult, float64) {
	var positive, negative, urgent int
	for _, word := range tokenSplitPattern.Split(strings.ToLower(text), -1) {
		if word == "" {
			continue
		}
		if positiveWords[word] {
			positive++
		}
		if negativeWords[word] {
			negative++
		}
		if urgencyWords[word] {
			urgent++
		}
	}

	// A negation token flips the polarity of the single word that follows it.
	for _, match := range negationPattern.FindAllStringSubmatch(text, -1) {
		negated := strings.ToLower(match[2])
		if positiveWords[negated] {
			positive--
			negative++
		} else if negativeWords[negated] {
			negative--
			positive++
		}
	}

	exclamations := strings.Count(text, "!")
	capsRatio := float64(len(capitalPattern.FindAllString(text, -1))) / float64(max(len(text), 1))

	total := positive + negative
	if total == 0 {
		total = 1
	}
	score := float64(positive-negative) / float64(total)

	var sentiment Sentiment
	switch {
	case positive > 0 && negative > 0:
		sentiment = SentimentMixed
	case score > 0.2:
		sentiment = SentimentPositive
	case score < -0.2:
		sentiment = SentimentNegative
	default:
		sentiment = SentimentNeutral
	}

	urgency := UrgencyLow
	if urgent > 0 || exclamations > 2 || capsRatio > 0.5 {
		urgency = UrgencyHigh
	} else if negative > 2 || exclamations > 0 {
		urgency = UrgencyMedium
	}
	// Critical requires repeated urgency words AND repeated negative words;
	// either count alone never yields critical.
	if urgent > 1 && negative > 1 {
		urgency = UrgencyCritical
	}

	emotions := []string{}
	if positive > 1 {
		emotions = append(emotions, "satisfied")
	}
	if negative > 1 {
		emotions = append(emotions, "frustrated")
	}
	if urgent > 0 {
		emotions = append(emotions, "anxious")
	}
	if gratefulPattern.MatchString(text) {
		emotions = append(emotions, "grateful")
	}
	if confusedPattern.MatchString(text) {
		emotions = append(emotions, "confused")
	}
	if angryPattern.MatchString(text) {
		emotions = append(emotions, "angry")
	}
	if len(emotions) == 0 {
		emotions = []string{"neutral"}
	}

	confidence := min(1, 0.4+float64(positive+negative)*0.15)

	return SentimentResult{
		Sentiment: sentiment,
		Score:     clampFloat(score, -1, 1),
		Urgency:   urgency,
		Emotions:  emotions,
	}, confidence
}

func (s *SentimentEstimator) generative(ctx context.Context, text string) (SentimentResult, error) {
	resp, err := s.svc.Complete(ctx, ai.Request{
		Model:       s.model,
		System:      sentimentAnalysisPrompt,
		Messages:    []ai.Message{{Role: ai.RoleUser, Content: text}},
		Temperature: 0.1,
		MaxTokens:   150,
		JSONOutput:  true,
	})
	if err != nil {
		s.log.GenerativeCallFailed("sentiment", err)
		return SentimentResult{}, err
	}

	var parsed struct {
		Sentiment string   `json:"sentiment"`
		Score     float64  `json:"score"`
		Urgency   string   `json:"urgency"`
		Emotions  []string `json:"emotions"`
	}
	if err := json.Unmarshal([]byte(stripJSONFence(resp.Text)), &parsed); err != nil {
		s.log.GenerativeCallFailed("sentiment", err)
		return SentimentResult{}, fmt.Errorf("sentiment: parse response: %w", err)
	}

	out := SentimentResult{
		Sentiment: coerceSentiment(parsed.Sentiment),
		Score:     clampFloat(parsed.Score, -1, 1),
		Urgency:   coerceUrgency(parsed.Urgency),
		Emotions:  parsed.Emotions,
	}
	if len(out.Emotions) == 0 {
		out.Emotions = []string{"neutral"}
	}
	return out, nil
}

func coerceSentiment(raw string) Sentiment {
	switch s := Sentiment(raw); s {
	case SentimentPositive, SentimentNegative, SentimentNeutral, SentimentMixed:
		return s
	}
	return SentimentNeutral
}

func coerceUrgency(raw string) Urgency {
	switch u := Urgency(raw); u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return u
	}
	return UrgencyMedium
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
