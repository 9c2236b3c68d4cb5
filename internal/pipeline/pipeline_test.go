package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"replyforce_backend/platform/ai"
	"replyforce_backend/platform/logger"
)

// stubCallService records every request and answers via a pluggable responder.
type stubCallService struct {
	mu      sync.Mutex
	calls   []ai.Request
	respond func(ai.Request) (ai.Response, error)
}

func (s *stubCallService) Complete(_ context.Context, req ai.Request) (ai.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.respond == nil {
		return ai.Response{}, errors.New("stub: no responder configured")
	}
	return s.respond(req)
}

func (s *stubCallService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func failingService() *stubCallService {
	return &stubCallService{
		respond: func(ai.Request) (ai.Response, error) {
			return ai.Response{}, errors.New("stub: provider unavailable")
		},
	}
}

func jsonService(payload string) *stubCallService {
	return &stubCallService{
		respond: func(ai.Request) (ai.Response, error) {
			return ai.Response{Text: payload, PromptTokens: 100, CompletionTokens: 50}, nil
		},
	}
}

func textService(reply string) *stubCallService {
	return &stubCallService{
		respond: func(req ai.Request) (ai.Response, error) {
			if req.JSONOutput {
				// Structured calls (classifier, sentiment escalation) get a
				// minimal valid object so only the reply text varies per test.
				if strings.Contains(req.System, "sentiment analysis engine") {
					return ai.Response{Text: `{"sentiment":"neutral","score":0,"urgency":"low","emotions":["neutral"]}`}, nil
				}
				return ai.Response{Text: `{"language":"en","entities":[],"topic":"inquiry","is_question":true,"summary":"test","key_phrases":[]}`}, nil
			}
			return ai.Response{Text: reply, PromptTokens: 120, CompletionTokens: 80}, nil
		},
	}
}

func testLogger() *logger.Logger {
	return logger.New("development")
}

func testBrand() BrandVoice {
	return BrandVoice{
		CompanyName:    "Acme",
		Tone:           "professional",
		Style:          "helpful",
		MaxReplyLength: 500,
		Language:       "en",
	}
}

func testInput(text string) Input {
	return Input{
		Channel:     ChannelFacebook,
		Text:        text,
		ContentType: ContentText,
		SenderID:    "sender-1",
		Brand:       testBrand(),
	}
}

func testOrchestrator(svc ai.CallService) *Orchestrator {
	log := testLogger()
	return NewOrchestrator(
		NewGuardrail(),
		NewClassifier(svc, "fast-model", log),
		NewSentimentEstimator(svc, "fast-model", log),
		NewReplyGenerator(svc, "primary-model", 0.7, 1000, log),
		0,
		log,
	)
}
