package pipeline

import (
	"context"
	"strings"
	"testing"

	"replyforce_backend/platform/ai"
)

func TestGenerateGreetingTemplate(t *testing.T) {
	svc := failingService()
	g := NewReplyGenerator(svc, "primary-model", 0.7, 1000, testLogger())

	cls := Classification{Topic: TopicGreeting, IsQuestion: false}
	reply := g.Generate(context.Background(), testInput("Hi there!"), cls, neutralSentiment(), LeadScore{Tag: TagCold})

	if reply.Confidence != 0.95 {
		t.Fatalf("expected template confidence 0.95, got %v", reply.Confidence)
	}
	if reply.RequiresHuman {
		t.Fatal("greeting template must not require a human")
	}
	if reply.TokensUsed != 0 {
		t.Fatalf("template reply must cost zero tokens, got %d", reply.TokensUsed)
	}
	if !strings.Contains(reply.Text, "Acme") {
		t.Fatalf("expected brand substitution, got %q", reply.Text)
	}
	if svc.callCount() != 0 {
		t.Fatalf("template path must not call the model, got %d calls", svc.callCount())
	}
}

func TestGenerateThanksTemplate(t *testing.T) {
	svc := failingService()
	g := NewReplyGenerator(svc, "primary-model", 0.7, 1000, testLogger())

	cls := Classification{Topic: TopicFeedback, IsQuestion: false}
	reply := g.Generate(context.Background(), testInput("thanks so much!"), cls, neutralSentiment(), LeadScore{Tag: TagCold})

	if reply.Confidence != 0.95 || reply.TokensUsed != 0 {
		t.Fatalf("expected zero-cost template, got confidence=%v tokens=%d", reply.Confidence, reply.TokensUsed)
	}
	if svc.callCount() != 0 {
		t.Fatal("thanks template must not call the model")
	}
}

func TestGenerateGreetingWithQuestionUsesModel(t *testing.T) {
	svc := textService("Hello! Our store opens at 9am. How else can I help?")
	g := NewReplyGenerator(svc, "primary-model", 0.7, 1000, testLogger())

	cls := Classification{Topic: TopicGreeting, IsQuestion: true}
	reply := g.Generate(context.Background(), testInput("Hi, when do you open?"), cls, neutralSentiment(), LeadScore{Tag: TagCold})

	if svc.callCount() != 1 {
		t.Fatalf("a greeting with a question must call the model, got %d calls", svc.callCount())
	}
	// Base 0.8 + greeting 0.15 = 0.95.
	if !almostEqual(reply.Confidence, 0.95) {
		t.Fatalf("expected confidence 0.95, got %v", reply.Confidence)
	}
	if reply.TokensUsed != 200 {
		t.Fatalf("expected prompt+completion tokens, got %d", reply.TokensUsed)
	}
}

func TestGenerateFallbackOnFailure(t *testing.T) {
	g := NewReplyGenerator(failingService(), "primary-model", 0.7, 1000, testLogger())

	cls := Classification{Topic: TopicInquiry, IsQuestion: true}
	reply := g.Generate(context.Background(), testInput("tell me about your product"), cls, neutralSentiment(), LeadScore{Tag: TagWarm})

	if reply.Confidence != 0.3 {
		t.Fatalf("expected apology confidence 0.3, got %v", reply.Confidence)
	}
	if !reply.RequiresHuman {
		t.Fatal("fallback reply must require a human")
	}
	if !strings.Contains(reply.Text, "Acme") {
		t.Fatalf("expected brand substitution in apology, got %q", reply.Text)
	}
	if !hasFlag(reply.SuggestedActions, "escalate_to_human") {
		t.Fatalf("expected escalate_to_human action, got %v", reply.SuggestedActions)
	}
}

func TestGenerateConfidenceAdjustments(t *testing.T) {
	cases := []struct {
		name      string
		replyText string
		topic     Topic
		truncated bool
		want      float64
	}{
		{"short reply", "OK, noted.", TopicInquiry, false, 0.6},
		{"hedging", "I'm not sure about that, but here is what our documentation says about it.", TopicInquiry, false, 0.6},
		{"complaint", "I understand your frustration, and here is how we can resolve the issue together.", TopicComplaint, false, 0.7},
		{"support", "Could you share which browser you are using so I can narrow this down further?", TopicSupport, false, 0.75},
		{"feedback", "Thank you so much for the kind words, we really appreciate hearing this!", TopicFeedback, false, 0.9},
		{"truncated", "Here is a complete answer to your question about our service offerings today.", TopicInquiry, true, 0.65},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := replyConfidence(tc.replyText, tc.topic, tc.truncated)
			if !almostEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestGenerateConfidenceWorstCase(t *testing.T) {
	// Short + hedging + complaint + truncated: every deduction fires.
	got := replyConfidence("I'm not sure", TopicComplaint, true)
	if !almostEqual(got, 0.15) {
		t.Fatalf("expected 0.15, got %v", got)
	}
	if got < 0.1 {
		t.Fatalf("confidence must never drop below the floor, got %v", got)
	}
}

func TestGenerateRequiresHumanUnderHalf(t *testing.T) {
	svc := &stubCallService{
		respond: func(req ai.Request) (ai.Response, error) {
			return ai.Response{Text: "I'm not sure", Truncated: true}, nil
		},
	}
	g := NewReplyGenerator(svc, "primary-model", 0.7, 1000, testLogger())

	cls := Classification{Topic: TopicComplaint, IsQuestion: false}
	reply := g.Generate(context.Background(), testInput("I am unhappy with my order"), cls, neutralSentiment(), LeadScore{Tag: TagCold})

	if !reply.RequiresHuman {
		t.Fatalf("confidence %v must require a human", reply.Confidence)
	}
}

func TestSuggestedActions(t *testing.T) {
	actions := suggestedActions(LeadScore{Tag: TagHot}, Classification{Topic: TopicPricing})
	want := []string{"notify_sales_team", "schedule_follow_up", "send_pricing_info"}
	if len(actions) != len(want) {
		t.Fatalf("expected %v, got %v", want, actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, actions)
		}
	}

	actions = suggestedActions(LeadScore{Tag: TagCold}, Classification{Topic: TopicComplaint})
	if !hasFlag(actions, "create_support_ticket") || !hasFlag(actions, "escalate_if_unresolved") {
		t.Fatalf("expected complaint actions, got %v", actions)
	}
}

func TestBuildReplyPromptSubstitution(t *testing.T) {
	in := testInput("How much is the Pro plan?")
	in.Brand.KnowledgeBase = "Pro plan: $49/month"
	cls := Classification{Topic: TopicPricing}
	sent := SentimentResult{Sentiment: SentimentPositive, Urgency: UrgencyLow, Emotions: []string{"curious"}}
	lead := LeadScore{Tag: TagHot, Intent: "purchase_evaluation"}

	prompt := buildReplyPrompt(in, cls, sent, lead)

	if strings.Contains(prompt, "{company_name}") || strings.Contains(prompt, "{knowledge_base}") {
		t.Fatal("placeholders must be substituted")
	}
	for _, want := range []string{"Acme", "Pro plan: $49/month", "pricing", "HOT", "purchase_evaluation", "FACEBOOK"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected %q in prompt", want)
		}
	}
}

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
