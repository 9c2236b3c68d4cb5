package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"replyforce_backend/internal/channels"
	"replyforce_backend/internal/email"
	"replyforce_backend/internal/events"
	"replyforce_backend/internal/notification/sse"
	"replyforce_backend/internal/pipeline"
	"replyforce_backend/internal/queue"
	"replyforce_backend/platform/apperr"
	"replyforce_backend/platform/logger"
)

type stubResolver struct {
	channel *channels.Channel
	err     error
}

func (s *stubResolver) GetByPlatformPage(_ context.Context, _, _ string) (*channels.Channel, error) {
	return s.channel, s.err
}

type stubStore struct {
	contact *Contact
	conv    *Conversation

	failInsertInbound bool

	inboundInserts int
	replyInserts   []string
	annotated      bool
	leadUpserts    []pipeline.LeadScore
	finishStatus   string
	finishMessages int
	tokensCharged  int
	mediaURL       string
}

func (s *stubStore) GetOrCreateContact(_ context.Context, _ uuid.UUID, _, _, _ string) (*Contact, error) {
	return s.contact, nil
}

func (s *stubStore) GetOrCreateConversation(_ context.Context, _, _, _ uuid.UUID) (*Conversation, error) {
	return s.conv, nil
}

func (s *stubStore) InsertInboundMessage(_ context.Context, _ uuid.UUID, _, _, _, _ string, _ time.Time) (uuid.UUID, error) {
	if s.failInsertInbound {
		return uuid.Nil, errors.New("insert failed")
	}
	s.inboundInserts++
	return uuid.New(), nil
}

func (s *stubStore) InsertReplyMessage(_ context.Context, _ uuid.UUID, content string, _ float64) (uuid.UUID, error) {
	s.replyInserts = append(s.replyInserts, content)
	return uuid.New(), nil
}

func (s *stubStore) AnnotateMessage(_ context.Context, _ uuid.UUID, _ []byte, _ float64) error {
	s.annotated = true
	return nil
}

func (s *stubStore) SetMediaURL(_ context.Context, _ uuid.UUID, mediaURL string) error {
	s.mediaURL = mediaURL
	return nil
}

func (s *stubStore) RecentTurns(_ context.Context, _, _ uuid.UUID, _ int) ([]pipeline.Turn, error) {
	return nil, nil
}

func (s *stubStore) GetBrandVoice(_ context.Context, _ uuid.UUID) (pipeline.BrandVoice, error) {
	return pipeline.BrandVoice{CompanyName: "Acme", MaxReplyLength: 500, Language: "en"}, nil
}

func (s *stubStore) GetLeadSnapshot(_ context.Context, _ uuid.UUID) (*pipeline.LeadSnapshot, error) {
	return nil, nil
}

func (s *stubStore) UpsertLead(_ context.Context, _, _ uuid.UUID, lead pipeline.LeadScore) (uuid.UUID, error) {
	s.leadUpserts = append(s.leadUpserts, lead)
	return uuid.New(), nil
}

func (s *stubStore) FinishConversationCycle(_ context.Context, _ uuid.UUID, status, _ string, _ time.Time, newMessages int) error {
	s.finishStatus = status
	s.finishMessages = newMessages
	return nil
}

func (s *stubStore) AttachLead(_ context.Context, _, _ uuid.UUID) error { return nil }

func (s *stubStore) GetTokenBudget(_ context.Context, _ uuid.UUID) (*TokenBudget, error) {
	return nil, nil
}

func (s *stubStore) AddTokenUsage(_ context.Context, _ uuid.UUID, tokens int) error {
	s.tokensCharged += tokens
	return nil
}

func (s *stubStore) GetNotificationEmail(_ context.Context, _ uuid.UUID) (string, error) {
	return "ops@acme.test", nil
}

type stubProcessor struct {
	out   pipeline.Output
	calls int
}

func (s *stubProcessor) Process(_ context.Context, _ pipeline.Input) pipeline.Output {
	s.calls++
	return s.out
}

type stubEnqueuer struct {
	outbound []queue.OutboundSendPayload
	crm      []queue.CRMSyncPayload
}

func (s *stubEnqueuer) EnqueueInboundMessage(_ context.Context, _ queue.InboundMessagePayload) error {
	return nil
}

func (s *stubEnqueuer) EnqueueOutboundSend(_ context.Context, p queue.OutboundSendPayload) error {
	s.outbound = append(s.outbound, p)
	return nil
}

func (s *stubEnqueuer) EnqueueCRMSync(_ context.Context, p queue.CRMSyncPayload) error {
	s.crm = append(s.crm, p)
	return nil
}

type stubRealtime struct {
	updates []sse.ConversationUpdate
}

func (s *stubRealtime) Publish(_ context.Context, u sse.ConversationUpdate) error {
	s.updates = append(s.updates, u)
	return nil
}

type stubNotifier struct {
	sent []email.EscalationData
	to   []string
}

func (s *stubNotifier) SendEscalationEmail(_ context.Context, toEmail string, data email.EscalationData) error {
	s.to = append(s.to, toEmail)
	s.sent = append(s.sent, data)
	return nil
}

type fixture struct {
	coordinator *Coordinator
	store       *stubStore
	processor   *stubProcessor
	enqueuer    *stubEnqueuer
	realtime    *stubRealtime
	notifier    *stubNotifier
	redis       *miniredis.Miniredis
}

func newFixture(t *testing.T, out pipeline.Output, autoReplyEnabled bool) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tenantID := uuid.New()
	channel := &channels.Channel{
		ID:               uuid.New(),
		TenantID:         tenantID,
		Type:             "FACEBOOK",
		PlatformPageID:   "page-1",
		Status:           "ACTIVE",
		AutoReplyEnabled: autoReplyEnabled,
	}

	store := &stubStore{
		contact: &Contact{ID: uuid.New(), TenantID: tenantID, PlatformID: "sender-1", Channel: "FACEBOOK"},
		conv:    &Conversation{ID: uuid.New(), TenantID: tenantID, Status: "OPEN"},
	}
	processor := &stubProcessor{out: out}
	enqueuer := &stubEnqueuer{}
	realtime := &stubRealtime{}
	notifier := &stubNotifier{}
	log := logger.New("development")

	c := NewCoordinator(
		rdb,
		&stubResolver{channel: channel},
		store,
		processor,
		enqueuer,
		events.NewInMemoryBus(log),
		realtime,
		nil,
		notifier,
		log,
	)
	return &fixture{coordinator: c, store: store, processor: processor, enqueuer: enqueuer, realtime: realtime, notifier: notifier, redis: mr}
}

func testPayload() queue.InboundMessagePayload {
	return queue.InboundMessagePayload{
		Channel:           "FACEBOOK",
		PlatformPageID:    "page-1",
		PlatformMessageID: "mid.123",
		SenderID:          "sender-1",
		SenderName:        "Jamie",
		Text:              "How much does the Pro plan cost?",
		ContentType:       "TEXT",
		Timestamp:         time.Now(),
	}
}

func completedOutput() pipeline.Output {
	return pipeline.Output{
		State:          pipeline.StateCompleted,
		GuardrailInput: pipeline.GuardrailVerdict{Passed: true, Flags: []string{}},
		Classification: pipeline.Classification{Topic: pipeline.TopicPricing, Summary: "Asked about pricing"},
		Sentiment:      pipeline.SentimentResult{Sentiment: pipeline.SentimentNeutral, Urgency: pipeline.UrgencyMedium, Emotions: []string{"neutral"}},
		Lead:           pipeline.LeadScore{Intent: "pricing_inquiry", Score: 55, Tag: pipeline.TagWarm, Signals: []string{"pricing_inquiry"}},
		Reply: pipeline.Reply{
			Text:             "Our Pro plan starts at $49 per month.",
			Confidence:       0.85,
			SuggestedActions: []string{"send_pricing_info"},
			TokensUsed:       200,
		},
		GuardrailOutput: pipeline.GuardrailVerdict{Passed: true, Flags: []string{}},
		TokensUsed:      400,
	}
}

func TestProcessInboundCompletedFanOut(t *testing.T) {
	f := newFixture(t, completedOutput(), true)

	if err := f.coordinator.ProcessInbound(context.Background(), testPayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.processor.calls != 1 {
		t.Fatalf("expected one pipeline run, got %d", f.processor.calls)
	}
	if len(f.store.replyInserts) != 1 {
		t.Fatalf("expected one stored reply, got %d", len(f.store.replyInserts))
	}
	if len(f.enqueuer.outbound) != 1 {
		t.Fatalf("expected one outbound enqueue, got %d", len(f.enqueuer.outbound))
	}
	if f.enqueuer.outbound[0].RecipientID != "sender-1" {
		t.Fatalf("outbound recipient = %q", f.enqueuer.outbound[0].RecipientID)
	}
	if len(f.enqueuer.crm) != 1 || f.enqueuer.crm[0].Summary != "Asked about pricing" {
		t.Fatalf("crm enqueue wrong: %+v", f.enqueuer.crm)
	}
	if f.store.finishStatus != "OPEN" || f.store.finishMessages != 2 {
		t.Fatalf("conversation finish wrong: status=%q messages=%d", f.store.finishStatus, f.store.finishMessages)
	}
	if f.store.tokensCharged != 400 {
		t.Fatalf("tokens charged = %d, want 400", f.store.tokensCharged)
	}
	if len(f.realtime.updates) != 1 || !f.realtime.updates[0].AutoReplied {
		t.Fatalf("realtime update wrong: %+v", f.realtime.updates)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("no escalation email expected, got %d", len(f.notifier.sent))
	}
}

func TestProcessInboundDuplicateDropped(t *testing.T) {
	f := newFixture(t, completedOutput(), true)
	payload := testPayload()

	if err := f.coordinator.ProcessInbound(context.Background(), payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.coordinator.ProcessInbound(context.Background(), payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if f.store.inboundInserts != 1 {
		t.Fatalf("duplicate must not persist a second message, inserts=%d", f.store.inboundInserts)
	}
	if f.processor.calls != 1 {
		t.Fatalf("duplicate must not rerun the pipeline, calls=%d", f.processor.calls)
	}
}

func TestProcessInboundErrorReleasesDedupClaim(t *testing.T) {
	f := newFixture(t, completedOutput(), true)
	f.store.failInsertInbound = true
	payload := testPayload()

	if err := f.coordinator.ProcessInbound(context.Background(), payload); err == nil {
		t.Fatal("expected error from failed insert")
	}

	if f.redis.Exists("dedup:FACEBOOK:mid.123") {
		t.Fatal("dedup claim must be released so the retry can process")
	}

	// Retry succeeds and takes a fresh claim.
	f.store.failInsertInbound = false
	if err := f.coordinator.ProcessInbound(context.Background(), payload); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !f.redis.Exists("dedup:FACEBOOK:mid.123") {
		t.Fatal("successful retry must leave the claim in place")
	}
}

func TestProcessInboundUnconnectedPageDropped(t *testing.T) {
	f := newFixture(t, completedOutput(), true)
	f.coordinator.channels = &stubResolver{err: apperr.NotFound("channel not connected")}

	if err := f.coordinator.ProcessInbound(context.Background(), testPayload()); err != nil {
		t.Fatalf("unconnected page must not retry: %v", err)
	}
	if f.store.inboundInserts != 0 || f.processor.calls != 0 {
		t.Fatal("unconnected page must not touch storage or the pipeline")
	}
}

func TestProcessInboundInactiveChannelDropped(t *testing.T) {
	f := newFixture(t, completedOutput(), true)
	f.coordinator.channels = &stubResolver{channel: &channels.Channel{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Status:   "PAUSED",
	}}

	if err := f.coordinator.ProcessInbound(context.Background(), testPayload()); err != nil {
		t.Fatalf("inactive channel must not retry: %v", err)
	}
	if f.processor.calls != 0 {
		t.Fatal("inactive channel must not run the pipeline")
	}
}

func TestProcessInboundBlockedMessage(t *testing.T) {
	out := completedOutput()
	out.State = pipeline.StateBlocked
	out.GuardrailInput = pipeline.GuardrailVerdict{
		Passed:        false,
		Flags:         []string{"prompt_injection"},
		RiskScore:     0.8,
		BlockedReason: "Blocked: prompt_injection",
	}
	out.Reply = pipeline.Reply{SuggestedActions: []string{"blocked_by_guardrail"}}
	out.TokensUsed = 0

	f := newFixture(t, out, true)

	if err := f.coordinator.ProcessInbound(context.Background(), testPayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.store.leadUpserts) != 0 {
		t.Fatal("blocked cycle must not touch the lead")
	}
	if len(f.enqueuer.outbound) != 0 || len(f.enqueuer.crm) != 0 {
		t.Fatal("blocked cycle must not fan out")
	}
	if f.store.finishMessages != 1 {
		t.Fatalf("blocked cycle stores only the inbound message, got %d", f.store.finishMessages)
	}
}

func TestProcessInboundEscalationNotifies(t *testing.T) {
	out := completedOutput()
	out.State = pipeline.StateEscalated
	out.Reply = pipeline.Reply{
		Text:             "Let me connect you with a team member.",
		Confidence:       1,
		RequiresHuman:    true,
		SuggestedActions: []string{"escalate_to_human", "notify_agent"},
	}

	f := newFixture(t, out, true)

	if err := f.coordinator.ProcessInbound(context.Background(), testPayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.enqueuer.outbound) != 0 {
		t.Fatal("escalated cycle must not auto-send")
	}
	if f.store.finishStatus != "NEEDS_HUMAN" {
		t.Fatalf("conversation status = %q, want NEEDS_HUMAN", f.store.finishStatus)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected one escalation email, got %d", len(f.notifier.sent))
	}
	if f.notifier.to[0] != "ops@acme.test" {
		t.Fatalf("escalation email recipient = %q", f.notifier.to[0])
	}
	if f.notifier.sent[0].SenderName != "Jamie" {
		t.Fatalf("escalation email sender = %q", f.notifier.sent[0].SenderName)
	}
	if len(f.enqueuer.crm) != 1 {
		t.Fatal("escalated cycle still syncs the lead")
	}
}

func TestProcessInboundAutoReplyDisabled(t *testing.T) {
	f := newFixture(t, completedOutput(), false)

	if err := f.coordinator.ProcessInbound(context.Background(), testPayload()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.store.replyInserts) != 0 || len(f.enqueuer.outbound) != 0 {
		t.Fatal("auto-reply disabled must suppress the reply")
	}
	if f.store.finishStatus != "OPEN" || f.store.finishMessages != 1 {
		t.Fatalf("conversation finish wrong: status=%q messages=%d", f.store.finishStatus, f.store.finishMessages)
	}
	if len(f.store.leadUpserts) != 1 {
		t.Fatal("lead scoring still applies without auto-reply")
	}
}
