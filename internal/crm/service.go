// Package crm synchronizes scored leads into the tenant's CRM. The pipeline
// produces the payload; this service owns the sync lifecycle: attempt
// tracking, retries via the queue, and dead-lettering after the attempt
// budget is spent.
package crm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"replyforce_backend/internal/channels/tokenvault"
	"replyforce_backend/internal/queue"
	"replyforce_backend/platform/logger"
)

// A sync that has failed this many times stops retrying and parks as
// DEAD_LETTER for manual review.
const maxSyncAttempts = 5

// Service handles crm.sync tasks.
type Service struct {
	repo       *Repository
	vault      *tokenvault.Vault
	connectors map[string]Connector
	limiters   map[string]*rate.Limiter
	log        *logger.Logger
}

// NewService wires the connector dispatch table.
func NewService(repo *Repository, vault *tokenvault.Vault, log *logger.Logger) *Service {
	return &Service{
		repo:  repo,
		vault: vault,
		connectors: map[string]Connector{
			"HUBSPOT":    newHubSpotConnector(),
			"SALESFORCE": newSalesforceConnector(),
		},
		limiters: map[string]*rate.Limiter{
			"HUBSPOT":    rate.NewLimiter(rate.Limit(5), 10),
			"SALESFORCE": rate.NewLimiter(rate.Limit(5), 10),
		},
		log: log,
	}
}

// SyncLead pushes one lead to the tenant's CRM. Returning an error triggers
// a queue retry; nil means done (including "nothing to do" outcomes).
func (s *Service) SyncLead(ctx context.Context, payload queue.CRMSyncPayload) error {
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("invalid tenant id %q: %w", payload.TenantID, err)
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("invalid lead id %q: %w", payload.LeadID, err)
	}

	cfg, err := s.repo.GetConfig(ctx, tenantID)
	if err != nil {
		return err
	}
	if cfg == nil {
		// No enabled CRM connection; nothing to sync.
		return nil
	}

	connector, ok := s.connectors[cfg.CRMType]
	if !ok {
		s.log.Error("no connector for crm type", "crm_type", cfg.CRMType)
		return nil
	}

	export, err := s.repo.GetLeadExport(ctx, tenantID, leadID)
	if err != nil {
		return err
	}

	fields := buildRecordFields(export, payload.Summary)
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode crm record fields: %w", err)
	}

	record, err := s.repo.BeginAttempt(ctx, tenantID, leadID, cfg.CRMType, fieldsJSON)
	if err != nil {
		return err
	}
	if record.Status == StatusDeadLetter {
		return nil
	}
	if record.Attempts > maxSyncAttempts {
		s.log.Error("crm sync dead-lettered",
			"lead_id", leadID.String(),
			"crm_type", cfg.CRMType,
			"attempts", record.Attempts,
		)
		return s.repo.MarkFailed(ctx, record.ID, StatusDeadLetter, "attempt budget exhausted")
	}

	apiKey, err := s.vault.Open(cfg.APIKeyEnc)
	if err != nil {
		return fmt.Errorf("unseal crm api key: %w", err)
	}

	if limiter, ok := s.limiters[cfg.CRMType]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	instanceURL := ""
	if cfg.InstanceURL != nil {
		instanceURL = *cfg.InstanceURL
	}

	crmRecordID, err := connector.UpsertLead(ctx, apiKey, instanceURL, fields)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, record.ID, StatusFailed, err.Error()); markErr != nil {
			s.log.DatabaseError("mark sync failed", markErr)
		}
		return err
	}

	if err := s.repo.MarkSuccess(ctx, record.ID, leadID, crmRecordID); err != nil {
		return err
	}

	s.log.Info("lead synced to crm",
		"lead_id", leadID.String(),
		"crm_type", cfg.CRMType,
		"crm_record_id", crmRecordID,
	)
	return nil
}

func buildRecordFields(export *LeadExport, summary string) RecordFields {
	var signals []string
	_ = json.Unmarshal(export.Signals, &signals)

	return RecordFields{
		Name:    deref(export.ContactName),
		Email:   deref(export.Email),
		Phone:   deref(export.Phone),
		Channel: export.Channel,
		Tag:     export.Tag,
		Score:   export.Score,
		Intent:  export.Intent,
		Signals: signals,
		Summary: summary,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
