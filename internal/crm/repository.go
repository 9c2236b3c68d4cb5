package crm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyforce_backend/platform/apperr"
)

// Config is the tenant's CRM connection.
type Config struct {
	ID          uuid.UUID `db:"id"`
	TenantID    uuid.UUID `db:"tenant_id"`
	CRMType     string    `db:"crm_type"`
	APIKeyEnc   string    `db:"api_key_enc"`
	InstanceURL *string   `db:"instance_url"`
	SyncEnabled bool      `db:"sync_enabled"`
}

// SyncRecord is one synchronization attempt trail for one lead.
type SyncRecord struct {
	ID          uuid.UUID  `db:"id"`
	TenantID    uuid.UUID  `db:"tenant_id"`
	LeadID      uuid.UUID  `db:"lead_id"`
	CRMType     string     `db:"crm_type"`
	Status      string     `db:"status"`
	CRMRecordID *string    `db:"crm_record_id"`
	Error       *string    `db:"error"`
	Attempts    int        `db:"attempts"`
	LastAttempt *time.Time `db:"last_attempt"`
}

// LeadExport is the flattened lead+contact view shipped to the CRM.
type LeadExport struct {
	LeadID      uuid.UUID
	Tag         string
	Score       int
	Intent      string
	Confidence  float64
	Signals     []byte // raw JSONB
	ContactName *string
	Email       *string
	Phone       *string
	Channel     string
	PlatformID  string
}

// Sync statuses.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusDeadLetter = "DEAD_LETTER"
)

// Repository provides database operations for CRM sync state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a CRM repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetConfig returns the tenant's enabled CRM connection, if any.
func (r *Repository) GetConfig(ctx context.Context, tenantID uuid.UUID) (*Config, error) {
	query := `
		SELECT id, tenant_id, crm_type, api_key_enc, instance_url, sync_enabled
		FROM crm_configs
		WHERE tenant_id = $1 AND sync_enabled = true
		LIMIT 1`

	var cfg Config
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.CRMType, &cfg.APIKeyEnc, &cfg.InstanceURL, &cfg.SyncEnabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get crm config: %w", err)
	}
	return &cfg, nil
}

// GetLeadExport loads the lead and its contact for field mapping.
func (r *Repository) GetLeadExport(ctx context.Context, tenantID, leadID uuid.UUID) (*LeadExport, error) {
	query := `
		SELECT l.id, l.tag, l.score, l.intent, l.confidence, l.signals,
		       c.name, c.email, c.phone, c.channel, c.platform_id
		FROM leads l
		JOIN contacts c ON c.id = l.contact_id
		WHERE l.id = $1 AND l.tenant_id = $2`

	var exp LeadExport
	err := r.pool.QueryRow(ctx, query, leadID, tenantID).Scan(
		&exp.LeadID, &exp.Tag, &exp.Score, &exp.Intent, &exp.Confidence, &exp.Signals,
		&exp.ContactName, &exp.Email, &exp.Phone, &exp.Channel, &exp.PlatformID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, fmt.Errorf("failed to get lead export: %w", err)
	}
	return &exp, nil
}

// BeginAttempt increments the attempt counter for the lead's sync record,
// creating it on first use, and returns the current state.
func (r *Repository) BeginAttempt(ctx context.Context, tenantID, leadID uuid.UUID, crmType string, payload []byte) (*SyncRecord, error) {
	query := `
		INSERT INTO crm_syncs (tenant_id, lead_id, crm_type, status, payload, attempts, last_attempt)
		VALUES ($1, $2, $3, $4, $5, 1, now())
		ON CONFLICT (lead_id) DO UPDATE SET
			status = CASE WHEN crm_syncs.status = 'DEAD_LETTER' THEN crm_syncs.status ELSE $4 END,
			payload = EXCLUDED.payload,
			attempts = crm_syncs.attempts + 1,
			last_attempt = now()
		RETURNING id, tenant_id, lead_id, crm_type, status, crm_record_id, error, attempts, last_attempt`

	var rec SyncRecord
	err := r.pool.QueryRow(ctx, query, tenantID, leadID, crmType, StatusInProgress, payload).Scan(
		&rec.ID, &rec.TenantID, &rec.LeadID, &rec.CRMType, &rec.Status,
		&rec.CRMRecordID, &rec.Error, &rec.Attempts, &rec.LastAttempt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to begin sync attempt: %w", err)
	}
	return &rec, nil
}

// MarkSuccess finalizes a sync and stamps the lead as synchronized.
func (r *Repository) MarkSuccess(ctx context.Context, syncID, leadID uuid.UUID, crmRecordID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE crm_syncs SET status = $2, crm_record_id = $3, error = NULL WHERE id = $1`,
		syncID, StatusSuccess, crmRecordID,
	); err != nil {
		return fmt.Errorf("failed to mark sync success: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE leads SET crm_synced = true, crm_record_id = $2, updated_at = now() WHERE id = $1`,
		leadID, crmRecordID,
	); err != nil {
		return fmt.Errorf("failed to stamp lead: %w", err)
	}
	return tx.Commit(ctx)
}

// MarkFailed records a failed attempt.
func (r *Repository) MarkFailed(ctx context.Context, syncID uuid.UUID, status, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE crm_syncs SET status = $2, error = $3 WHERE id = $1`,
		syncID, status, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to mark sync failed: %w", err)
	}
	return nil
}
