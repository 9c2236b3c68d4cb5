package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RecordFields is the CRM-neutral field set; each connector maps it onto its
// platform's schema.
type RecordFields struct {
	Name    string
	Email   string
	Phone   string
	Channel string
	Tag     string
	Score   int
	Intent  string
	Signals []string
	Summary string
}

// Connector pushes one lead record into one CRM platform.
type Connector interface {
	UpsertLead(ctx context.Context, apiKey, instanceURL string, fields RecordFields) (recordID string, err error)
}

func connectorClient() *http.Client {
	return &http.Client{Timeout: 20 * time.Second}
}

// hubspotConnector writes contacts through the HubSpot v3 objects API.
type hubspotConnector struct {
	client  *http.Client
	baseURL string
}

func newHubSpotConnector() *hubspotConnector {
	return &hubspotConnector{client: connectorClient(), baseURL: "https://api.hubapi.com"}
}

func (c *hubspotConnector) UpsertLead(ctx context.Context, apiKey, _ string, fields RecordFields) (string, error) {
	properties := map[string]string{
		"email":                fields.Email,
		"phone":                fields.Phone,
		"firstname":            fields.Name,
		"hs_lead_status":       fields.Tag,
		"lead_score":           strconv.Itoa(fields.Score),
		"lead_intent":          fields.Intent,
		"lead_signals":         strings.Join(fields.Signals, ","),
		"conversation_summary": fields.Summary,
		"social_channel":       fields.Channel,
	}

	var result struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	url := c.baseURL + "/crm/v3/objects/contacts"
	if err := c.post(ctx, url, apiKey, map[string]any{"properties": properties}, &result); err != nil {
		return "", fmt.Errorf("hubspot: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("hubspot: %s", orDefault(result.Message, "no record id returned"))
	}
	return result.ID, nil
}

func (c *hubspotConnector) post(ctx context.Context, url, apiKey string, payload, result any) error {
	return postConnector(ctx, c.client, url, apiKey, payload, result)
}

// salesforceConnector writes Lead sobjects through the tenant's instance URL.
type salesforceConnector struct {
	client *http.Client
}

func newSalesforceConnector() *salesforceConnector {
	return &salesforceConnector{client: connectorClient()}
}

func (c *salesforceConnector) UpsertLead(ctx context.Context, apiKey, instanceURL string, fields RecordFields) (string, error) {
	if instanceURL == "" {
		return "", fmt.Errorf("salesforce: instance url not configured")
	}

	lastName := fields.Name
	if lastName == "" {
		lastName = fields.Channel + " contact"
	}
	record := map[string]any{
		"LastName":    lastName,
		"Email":       fields.Email,
		"Phone":       fields.Phone,
		"LeadSource":  fields.Channel,
		"Rating":      fields.Tag,
		"Description": fields.Summary + "\nIntent: " + fields.Intent + "\nSignals: " + strings.Join(fields.Signals, ", "),
	}

	var result struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
	}
	url := strings.TrimRight(instanceURL, "/") + "/services/data/v59.0/sobjects/Lead/"
	if err := postConnector(ctx, c.client, url, apiKey, record, &result); err != nil {
		return "", fmt.Errorf("salesforce: %w", err)
	}
	if !result.Success || result.ID == "" {
		return "", fmt.Errorf("salesforce: create rejected")
	}
	return result.ID, nil
}

func postConnector(ctx context.Context, client *http.Client, url, apiKey string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
