// Package channels manages connected social accounts: one row per platform
// page/number/handle, carrying the encrypted access token and the auto-reply
// switch.
package channels

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

// Channel is the connected-account database model.
type Channel struct {
	ID               uuid.UUID `db:"id"`
	TenantID         uuid.UUID `db:"tenant_id"`
	Type             string    `db:"type"`
	PlatformPageID   string    `db:"platform_page_id"`
	AccessTokenEnc   string    `db:"access_token_enc"`
	AutoReplyEnabled bool      `db:"auto_reply_enabled"`
	Status           string    `db:"status"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Repository provides database operations for channels.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a channels repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const channelColumns = `id, tenant_id, type, platform_page_id, access_token_enc, auto_reply_enabled, status, created_at, updated_at`

// GetByPlatformPage resolves the channel owning an inbound webhook event.
// The (type, platform_page_id) pair is unique across tenants.
func (r *Repository) GetByPlatformPage(ctx context.Context, channelType, platformPageID string) (*Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE type = $1 AND platform_page_id = $2`

	ch, err := scanChannel(r.pool.QueryRow(ctx, query, channelType, platformPageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("channel not connected")
		}
		return nil, fmt.Errorf("failed to get channel by platform page: %w", err)
	}
	return ch, nil
}

// GetByID loads a channel for outbound delivery.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`

	ch, err := scanChannel(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("channel not found")
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

// Upsert connects or refreshes a channel. The sealed access token replaces
// any previous one.
func (r *Repository) Upsert(ctx context.Context, ch *Channel) error {
	query := `
		INSERT INTO channels (id, tenant_id, type, platform_page_id, access_token_enc, auto_reply_enabled, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (type, platform_page_id) DO UPDATE SET
			access_token_enc = EXCLUDED.access_token_enc,
			auto_reply_enabled = EXCLUDED.auto_reply_enabled,
			status = EXCLUDED.status,
			updated_at = now()`

	_, err := r.pool.Exec(ctx, query,
		ch.ID, ch.TenantID, ch.Type, ch.PlatformPageID, ch.AccessTokenEnc, ch.AutoReplyEnabled, ch.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert channel: %w", err)
	}
	return nil
}

// UpdateStatus flips a channel between ACTIVE, PAUSED, and DISCONNECTED.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE channels SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update channel status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("channel not found")
	}
	return nil
}

func scanChannel(row pgx.Row) (*Channel, error) {
	var ch Channel
	err := row.Scan(
		&ch.ID, &ch.TenantID, &ch.Type, &ch.PlatformPageID, &ch.AccessTokenEnc,
		&ch.AutoReplyEnabled, &ch.Status, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}
