package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"replyforce_backend/platform/logger"
)

// Orchestrator drives the per-message state machine:
//
//	Start -> inbound guardrail -> (Blocked)
//	      -> classifier + sentiment (parallel) -> lead scoring -> (Escalated)
//	      -> reply generation -> outbound guardrail -> Completed
//
// Blocked and Escalated are the only early exits. Process never returns an
// error; every failure inside a component degrades to a typed fallback.
type Orchestrator struct {
	guardrail  *Guardrail
	classifier *Classifier
	sentiment  *SentimentEstimator
	reply      *ReplyGenerator
	log        *logger.Logger

	// Upper bound for each generative step; zero means caller-provided
	// context only.
	callTimeout time.Duration
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(
	guardrail *Guardrail,
	classifier *Classifier,
	sentiment *SentimentEstimator,
	reply *ReplyGenerator,
	callTimeout time.Duration,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		guardrail:   guardrail,
		classifier:  classifier,
		sentiment:   sentiment,
		reply:       reply,
		callTimeout: callTimeout,
		log:         log,
	}
}

// The classifier's own token usage is not separately metered; a fixed
// estimate is added to every non-blocked cycle.
const classifierTokenEstimate = 200

const handoffText = "Thank you for reaching out. Let me connect you with a team member who can assist you further. Someone will be with you shortly."

var humanRequestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)speak.*(human|person|agent|someone|representative)`),
	regexp.MustCompile(`(?i)talk.*(human|person|agent|someone|representative)`),
	regexp.MustCompile(`(?i)real (person|human)`),
	regexp.MustCompile(`(?i)transfer.*agent`),
	regexp.MustCompile(`(?i)customer (service|support)`),
}

var legalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)lawyer|attorney|legal|lawsuit|sue|court`),
	regexp.MustCompile(`(?i)gdpr|privacy|data (deletion|removal)`),
	regexp.MustCompile(`(?i)refund|chargeback|dispute`),
}

// Process runs one full decision cycle for one message.
func (o *Orchestrator) Process(ctx context.Context, in Input) Output {
	start := time.Now()

	inVerdict := o.guardrail.EvaluateInbound(in.Text)
	if !inVerdict.Passed {
		return finish(blockedOutput(inVerdict), start)
	}

	// Classifier and sentiment share no state and no ordering dependency.
	var (
		cls  Classification
		sent SentimentResult
	)
	analysisCtx, cancelAnalysis := o.stepContext(ctx)
	g, gctx := errgroup.WithContext(analysisCtx)
	g.Go(func() error {
		cls = o.classifier.Classify(gctx, in)
		return nil
	})
	g.Go(func() error {
		sent = o.sentiment.Estimate(gctx, in)
		return nil
	})
	_ = g.Wait() // components never return errors; they degrade internally
	cancelAnalysis()

	tokens := classifierTokenEstimate

	lead := ScoreLead(in, cls, sent)

	if escalationReason := escalationTrigger(sent, in); escalationReason != "" {
		o.log.Info("pipeline escalated to human",
			"reason", escalationReason,
			"conversation_id", in.ConversationID.String(),
		)
		return finish(Output{
			State:          StateEscalated,
			GuardrailInput: inVerdict,
			Classification: cls,
			Sentiment:      sent,
			Lead:           lead,
			Reply: Reply{
				Text:             handoffText,
				Confidence:       1,
				RequiresHuman:    true,
				SuggestedActions: []string{"escalate_to_human", "notify_agent"},
				TokensUsed:       0,
			},
			GuardrailOutput: cleanVerdict(),
			TokensUsed:      tokens,
		}, start)
	}

	replyCtx, cancelReply := o.stepContext(ctx)
	reply := o.reply.Generate(replyCtx, in, cls, sent, lead)
	cancelReply()
	tokens += reply.TokensUsed

	outVerdict := o.guardrail.EvaluateOutbound(reply.Text)
	if !outVerdict.Passed {
		// Never ship guardrail-failing text. Substitute a topic-keyed
		// fallback and force a human into the loop.
		reply.Text = fallbackReplyText(in.Brand.CompanyName, cls.Topic)
		reply.Confidence = 0.5
		reply.RequiresHuman = true
	}

	return finish(Output{
		State:           StateCompleted,
		GuardrailInput:  inVerdict,
		Classification:  cls,
		Sentiment:       sent,
		Lead:            lead,
		Reply:           reply,
		GuardrailOutput: outVerdict,
		TokensUsed:      tokens,
	}, start)
}

func (o *Orchestrator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.callTimeout)
}

// escalationTrigger applies the deterministic human-handoff rules. These run
// on the raw text and sentiment only, independent of any generative output.
func escalationTrigger(sent SentimentResult, in Input) string {
	if sent.Urgency == UrgencyCritical && sent.Sentiment == SentimentNegative {
		return "critical_negative_sentiment"
	}
	for _, p := range humanRequestPatterns {
		if p.MatchString(in.Text) {
			return "human_requested"
		}
	}
	for _, p := range legalPatterns {
		if p.MatchString(in.Text) {
			return "legal_compliance"
		}
	}

	// A thread with 4+ recent customer turns is stale and unresolved;
	// keep a bot out of it.
	if len(recentCustomerTurns(in.History, 5)) >= 4 {
		return "stale_unresolved_thread"
	}
	return ""
}

func recentCustomerTurns(history []Turn, n int) []Turn {
	turns := []Turn{}
	for _, t := range history {
		if t.Role == RoleContact {
			turns = append(turns, t)
		}
	}
	return lastTurns(turns, n)
}

// blockedOutput suppresses the message entirely. Blocked messages are
// dropped, not escalated; requiresHuman stays false.
func blockedOutput(verdict GuardrailVerdict) Output {
	return Output{
		State:          StateBlocked,
		GuardrailInput: verdict,
		Classification: Classification{
			Language:   "en",
			Entities:   []Entity{},
			Topic:      TopicOther,
			Summary:    "Message blocked by guardrail",
			KeyPhrases: []string{},
		},
		Sentiment: SentimentResult{
			Sentiment: SentimentNeutral,
			Score:     0,
			Urgency:   UrgencyLow,
			Emotions:  []string{},
		},
		Lead: LeadScore{
			Intent:            "blocked",
			Confidence:        1,
			Score:             0,
			Tag:               TagCold,
			Signals:           []string{"guardrail_blocked"},
			RecommendedAction: "ignore",
		},
		Reply: Reply{
			Text:             "",
			Confidence:       0,
			RequiresHuman:    false,
			SuggestedActions: []string{"blocked_by_guardrail"},
			TokensUsed:       0,
		},
		GuardrailOutput: cleanVerdict(),
		TokensUsed:      0,
	}
}

func cleanVerdict() GuardrailVerdict {
	return GuardrailVerdict{Passed: true, Flags: []string{}, RiskScore: 0}
}

func fallbackReplyText(companyName string, topic Topic) string {
	switch topic {
	case TopicPricing:
		return fmt.Sprintf("Thanks for your interest in %s! I'll have a team member get back to you with detailed pricing information shortly.", companyName)
	case TopicSupport:
		return fmt.Sprintf("Thank you for reaching out to %s. A support team member will assist you soon.", companyName)
	case TopicComplaint:
		return "We're sorry to hear about your experience. A team member will look into this and get back to you as soon as possible."
	default:
		return fmt.Sprintf("Thank you for contacting %s! A team member will be with you shortly.", companyName)
	}
}

func finish(out Output, start time.Time) Output {
	out.Duration = time.Since(start)
	out.DurationMs = out.Duration.Milliseconds()
	return out
}
