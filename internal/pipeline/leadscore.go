package pipeline

import (
	"math"
	"regexp"
)

// Lead scoring is a pure weighted rules engine, never a generative call.
// Scores must be reproducible and auditable: the signal list records every
// rule that fired, in evaluation order.

var (
	highIntentPattern   = regexp.MustCompile(`(?i)\b(buy|purchase|order|subscribe|sign up|get started|pricing|demo|trial)\b`)
	availabilityPattern = regexp.MustCompile(`(?i)\b(available|in stock|how soon|when can|delivery|shipping)\b`)
	urgencyLangPattern  = regexp.MustCompile(`(?i)\b(need|asap|urgent|today|right now|immediately)\b`)
	comparisonPattern   = regexp.MustCompile(`(?i)\b(compare|vs|versus|alternative|better than|difference)\b`)
	optOutPattern       = regexp.MustCompile(`(?i)\b(not interested|unsubscribe|stop|remove|spam)\b`)
	cancellationPattern = regexp.MustCompile(`(?i)\b(cancel|refund|return|exchange)\b`)
)

// ScoreLead accumulates signed topic, entity, keyword, sentiment, and
// engagement contributions, applies prior-lead momentum, and clamps to
// [0,100].
func ScoreLead(in Input, cls Classification, sent SentimentResult) LeadScore {
	score := 0
	signals := []string{}
	intent := "unknown"

	switch cls.Topic {
	case TopicPricing:
		score += 30
		signals = append(signals, "pricing_inquiry")
		intent = "purchase_evaluation"
	case TopicInquiry:
		score += 20
		signals = append(signals, "product_inquiry")
		intent = "information_seeking"
	case TopicSupport:
		score += 10
		signals = append(signals, "support_request")
		intent = "support"
	case TopicComplaint:
		score -= 10
		signals = append(signals, "complaint")
		intent = "complaint_resolution"
	case TopicFeedback:
		score += 15
		signals = append(signals, "feedback")
		intent = "engagement"
	case TopicGreeting:
		score += 5
		signals = append(signals, "initial_contact")
		intent = "initial_contact"
	}

	if cls.IsQuestion {
		score += 5
		signals = append(signals, "active_inquiry")
	}

	for _, entity := range cls.Entities {
		switch entity.Kind {
		case EntityProduct:
			score += 15
			signals = append(signals, "product_mention:"+entity.Value)
			intent = "product_interest"
		case EntityPrice:
			score += 20
			signals = append(signals, "price_mention")
			intent = "purchase_evaluation"
		}
	}

	text := in.Text
	if highIntentPattern.MatchString(text) {
		score += 25
		signals = append(signals, "high_intent_keyword")
		intent = "purchase_intent"
	}
	if availabilityPattern.MatchString(text) {
		score += 15
		signals = append(signals, "availability_inquiry")
	}
	if urgencyLangPattern.MatchString(text) {
		score += 15
		signals = append(signals, "urgency_language")
	}
	if comparisonPattern.MatchString(text) {
		score += 10
		signals = append(signals, "comparison_shopping")
		intent = "evaluation"
	}
	if optOutPattern.MatchString(text) {
		score -= 30
		signals = append(signals, "negative_intent")
		intent = "opt_out"
	}
	if cancellationPattern.MatchString(text) {
		score -= 15
		signals = append(signals, "cancellation_signal")
		intent = "cancellation"
	}

	switch sent.Sentiment {
	case SentimentPositive:
		score += 10
		signals = append(signals, "positive_sentiment")
	case SentimentNegative:
		score -= 10
		signals = append(signals, "negative_sentiment")
	}

	customerTurns := 0
	for _, turn := range in.History {
		if turn.Role == RoleContact {
			customerTurns++
		}
	}
	// Both engagement thresholds can fire on the same conversation.
	if customerTurns >= 3 {
		score += 15
		signals = append(signals, "repeat_engagement")
	}
	if customerTurns >= 5 {
		score += 10
		signals = append(signals, "high_engagement")
	}

	if prior := in.PriorLead; prior != nil {
		// Momentum bonus applies only to previously-WARM leads that are
		// still accumulating signals; HOT and COLD priors get no bonus.
		if prior.Tag == TagWarm && score > 30 {
			score += 10
			signals = append(signals, "warming_up")
		}
		score = int(math.Round(float64(score)*0.7 + float64(prior.Score)*0.3))
	}

	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	var tag LeadTag
	action := "monitor"
	switch {
	case score >= 70:
		tag = TagHot
		action = "immediate_follow_up"
	case score >= 40:
		tag = TagWarm
		action = "nurture_campaign"
	default:
		tag = TagCold
	}

	return LeadScore{
		Intent:            intent,
		Confidence:        min(1, 0.5+float64(len(signals))*0.08),
		Score:             score,
		Tag:               tag,
		Signals:           signals,
		RecommendedAction: action,
	}
}
