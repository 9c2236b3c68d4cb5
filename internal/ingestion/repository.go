package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyforce_backend/internal/pipeline"
	"replyforce_backend/platform/phone"
)

// Contact is one platform identity the tenant has talked to.
type Contact struct {
	ID         uuid.UUID `db:"id"`
	TenantID   uuid.UUID `db:"tenant_id"`
	PlatformID string    `db:"platform_id"`
	Channel    string    `db:"channel"`
	Name       *string   `db:"name"`
}

// Conversation is one open thread between a contact and the tenant.
type Conversation struct {
	ID           uuid.UUID `db:"id"`
	TenantID     uuid.UUID `db:"tenant_id"`
	ChannelID    uuid.UUID `db:"channel_id"`
	ContactID    uuid.UUID `db:"contact_id"`
	Status       string    `db:"status"`
	MessageCount int       `db:"message_count"`
}

// TokenBudget is the tenant's generative spend state.
type TokenBudget struct {
	DailyLimit        int64
	MonthlyLimit      int64
	CurrentDailyUsage int64
	HardCap           bool
}

// Exhausted reports whether a hard-capped tenant has spent its daily budget.
func (b *TokenBudget) Exhausted() bool {
	return b != nil && b.HardCap && b.CurrentDailyUsage >= b.DailyLimit
}

// Repository owns the conversation-state tables the coordinator reads and
// writes around a pipeline cycle.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an ingestion repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOrCreateContact resolves the sender to a contact row, creating it on
// first touch. WhatsApp sender ids are normalized to E.164 so the same number
// never produces two contacts.
func (r *Repository) GetOrCreateContact(ctx context.Context, tenantID uuid.UUID, channel, platformID, name string) (*Contact, error) {
	if channel == string(pipeline.ChannelWhatsApp) {
		platformID = phone.NormalizeWhatsAppID(platformID)
	}

	query := `
		INSERT INTO contacts (tenant_id, platform_id, channel, name)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (tenant_id, channel, platform_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name)
		RETURNING id, tenant_id, platform_id, channel, name`

	var c Contact
	err := r.pool.QueryRow(ctx, query, tenantID, platformID, channel, name).
		Scan(&c.ID, &c.TenantID, &c.PlatformID, &c.Channel, &c.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create contact: %w", err)
	}
	return &c, nil
}

// GetOrCreateConversation returns the contact's open thread, creating one
// when every prior thread is closed.
func (r *Repository) GetOrCreateConversation(ctx context.Context, tenantID, channelID, contactID uuid.UUID) (*Conversation, error) {
	query := `
		SELECT id, tenant_id, channel_id, contact_id, status, message_count
		FROM conversations
		WHERE tenant_id = $1 AND channel_id = $2 AND contact_id = $3
		  AND status IN ('OPEN', 'NEEDS_HUMAN')
		ORDER BY created_at DESC
		LIMIT 1`

	var conv Conversation
	err := r.pool.QueryRow(ctx, query, tenantID, channelID, contactID).
		Scan(&conv.ID, &conv.TenantID, &conv.ChannelID, &conv.ContactID, &conv.Status, &conv.MessageCount)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	insert := `
		INSERT INTO conversations (tenant_id, channel_id, contact_id)
		VALUES ($1, $2, $3)
		RETURNING id, tenant_id, channel_id, contact_id, status, message_count`

	err = r.pool.QueryRow(ctx, insert, tenantID, channelID, contactID).
		Scan(&conv.ID, &conv.TenantID, &conv.ChannelID, &conv.ContactID, &conv.Status, &conv.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

// InsertInboundMessage stores the contact's message and returns its id, which
// becomes the pipeline's MessageID.
func (r *Repository) InsertInboundMessage(ctx context.Context, conversationID uuid.UUID, content, contentType, platformMsgID, mediaURL string, at time.Time) (uuid.UUID, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_type, content, content_type, platform_msg_id, media_url, created_at)
		VALUES ($1, 'CONTACT', $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query, conversationID, content, contentType, platformMsgID, mediaURL, at).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert inbound message: %w", err)
	}
	return id, nil
}

// InsertReplyMessage stores an auto-reply and returns its id. The platform
// message id is filled in after delivery succeeds.
func (r *Repository) InsertReplyMessage(ctx context.Context, conversationID uuid.UUID, content string, confidence float64) (uuid.UUID, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_type, content, is_auto_reply, ai_confidence)
		VALUES ($1, 'AI_BOT', $2, true, $3)
		RETURNING id`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query, conversationID, content, confidence).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert reply message: %w", err)
	}
	return id, nil
}

// AnnotateMessage attaches the pipeline output to the inbound message row.
func (r *Repository) AnnotateMessage(ctx context.Context, messageID uuid.UUID, analysis []byte, confidence float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET ai_analysis = $2, ai_confidence = $3 WHERE id = $1`,
		messageID, analysis, confidence)
	if err != nil {
		return fmt.Errorf("failed to annotate message: %w", err)
	}
	return nil
}

// SetMediaURL replaces the message's media url with the archived object key.
func (r *Repository) SetMediaURL(ctx context.Context, messageID uuid.UUID, mediaURL string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET media_url = $2 WHERE id = $1`, messageID, mediaURL)
	if err != nil {
		return fmt.Errorf("failed to set media url: %w", err)
	}
	return nil
}

// RecordDelivered stores the platform's message id once the reply is on the
// wire.
func (r *Repository) RecordDelivered(ctx context.Context, messageID uuid.UUID, platformMsgID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET platform_msg_id = $2 WHERE id = $1`, messageID, platformMsgID)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// RecentTurns loads the last n messages of the conversation, oldest first,
// excluding the message currently being processed.
func (r *Repository) RecentTurns(ctx context.Context, conversationID, excludeMessageID uuid.UUID, n int) ([]pipeline.Turn, error) {
	query := `
		SELECT sender_type, content, created_at
		FROM messages
		WHERE conversation_id = $1 AND id <> $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, conversationID, excludeMessageID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	defer rows.Close()

	var turns []pipeline.Turn
	for rows.Next() {
		var senderType string
		var t pipeline.Turn
		if err := rows.Scan(&senderType, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		t.Role = turnRole(senderType)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversation history: %w", err)
	}

	// Query returns newest first; the pipeline wants chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func turnRole(senderType string) pipeline.TurnRole {
	switch senderType {
	case "AI_BOT":
		return pipeline.RoleAIBot
	case "HUMAN_AGENT":
		return pipeline.RoleHumanAgent
	default:
		return pipeline.RoleContact
	}
}

// GetBrandVoice loads the tenant's persona, falling back to neutral defaults
// with the tenant's own name when none is configured.
func (r *Repository) GetBrandVoice(ctx context.Context, tenantID uuid.UUID) (pipeline.BrandVoice, error) {
	query := `
		SELECT company_name, tone, style, COALESCE(guidelines, ''), COALESCE(knowledge_base, ''),
		       max_reply_length, use_emojis, language
		FROM brand_voices WHERE tenant_id = $1`

	var bv pipeline.BrandVoice
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&bv.CompanyName, &bv.Tone, &bv.Style, &bv.Guidelines, &bv.KnowledgeBase,
		&bv.MaxReplyLength, &bv.UseEmojis, &bv.Language,
	)
	if err == nil {
		return bv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return pipeline.BrandVoice{}, fmt.Errorf("failed to load brand voice: %w", err)
	}

	var tenantName string
	if err := r.pool.QueryRow(ctx, `SELECT name FROM tenants WHERE id = $1`, tenantID).Scan(&tenantName); err != nil {
		return pipeline.BrandVoice{}, fmt.Errorf("failed to load tenant: %w", err)
	}
	return pipeline.BrandVoice{
		CompanyName:    tenantName,
		Tone:           "professional",
		Style:          "helpful",
		MaxReplyLength: 500,
		Language:       "en",
	}, nil
}

// GetLeadSnapshot returns the contact's current lead state, or nil on first
// contact.
func (r *Repository) GetLeadSnapshot(ctx context.Context, contactID uuid.UUID) (*pipeline.LeadSnapshot, error) {
	query := `SELECT tag, score, signals FROM leads WHERE contact_id = $1`

	var (
		snap       pipeline.LeadSnapshot
		signalsRaw []byte
	)
	err := r.pool.QueryRow(ctx, query, contactID).Scan(&snap.Tag, &snap.Score, &signalsRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lead snapshot: %w", err)
	}
	if err := json.Unmarshal(signalsRaw, &snap.Signals); err != nil {
		snap.Signals = nil
	}
	return &snap, nil
}

// UpsertLead writes the fresh score over the contact's lead row and returns
// the lead id.
func (r *Repository) UpsertLead(ctx context.Context, tenantID, contactID uuid.UUID, lead pipeline.LeadScore) (uuid.UUID, error) {
	signals, err := json.Marshal(lead.Signals)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal lead signals: %w", err)
	}

	query := `
		INSERT INTO leads (tenant_id, contact_id, tag, score, signals, intent, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (contact_id) DO UPDATE SET
			tag = EXCLUDED.tag,
			score = EXCLUDED.score,
			signals = EXCLUDED.signals,
			intent = EXCLUDED.intent,
			confidence = EXCLUDED.confidence,
			updated_at = now()
		RETURNING id`

	var id uuid.UUID
	err = r.pool.QueryRow(ctx, query,
		tenantID, contactID, string(lead.Tag), lead.Score, signals, lead.Intent, lead.Confidence,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert lead: %w", err)
	}
	return id, nil
}

// FinishConversationCycle updates the thread's status, preview, and counters
// after a cycle persisted its messages.
func (r *Repository) FinishConversationCycle(ctx context.Context, conversationID uuid.UUID, status, preview string, at time.Time, newMessages int) error {
	query := `
		UPDATE conversations SET
			status = $2,
			last_message_at = $3,
			last_message_preview = $4,
			message_count = message_count + $5,
			updated_at = now()
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, conversationID, status, at, preview, newMessages)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// AttachLead links the conversation to its lead row. Idempotent.
func (r *Repository) AttachLead(ctx context.Context, conversationID, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET lead_id = $2 WHERE id = $1 AND (lead_id IS NULL OR lead_id <> $2)`,
		conversationID, leadID)
	if err != nil {
		return fmt.Errorf("failed to attach lead: %w", err)
	}
	return nil
}

// GetTokenBudget loads the tenant's spend state; nil when no budget row
// exists (budgeting not configured).
func (r *Repository) GetTokenBudget(ctx context.Context, tenantID uuid.UUID) (*TokenBudget, error) {
	query := `
		SELECT daily_limit, monthly_limit, current_daily_usage, hard_cap
		FROM token_budgets WHERE tenant_id = $1`

	var b TokenBudget
	err := r.pool.QueryRow(ctx, query, tenantID).
		Scan(&b.DailyLimit, &b.MonthlyLimit, &b.CurrentDailyUsage, &b.HardCap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token budget: %w", err)
	}
	return &b, nil
}

// AddTokenUsage atomically charges a cycle's spend against the budget.
func (r *Repository) AddTokenUsage(ctx context.Context, tenantID uuid.UUID, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	query := `
		UPDATE token_budgets SET
			current_daily_usage = current_daily_usage + $2,
			current_monthly_usage = current_monthly_usage + $2
		WHERE tenant_id = $1`

	_, err := r.pool.Exec(ctx, query, tenantID, tokens)
	if err != nil {
		return fmt.Errorf("failed to add token usage: %w", err)
	}
	return nil
}

// GetNotificationEmail returns the tenant's escalation address, empty when
// unset.
func (r *Repository) GetNotificationEmail(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var email *string
	err := r.pool.QueryRow(ctx,
		`SELECT notification_email FROM tenants WHERE id = $1`, tenantID).Scan(&email)
	if err != nil {
		return "", fmt.Errorf("failed to load notification email: %w", err)
	}
	if email == nil {
		return "", nil
	}
	return *email, nil
}
