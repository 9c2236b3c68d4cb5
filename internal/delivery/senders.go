package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"replyforce_backend/platform/phone"
)

const graphAPIBase = "https://graph.facebook.com/v19.0"

// PlatformSender delivers one text message to one recipient on one platform.
// Implementations hold platform quirks; everything above dispatches through
// this interface.
type PlatformSender interface {
	Send(ctx context.Context, token, recipientID, text string) (platformMsgID string, err error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// metaSender covers Facebook Messenger and Instagram DMs; both use the Graph
// send API with a page access token.
type metaSender struct {
	client *http.Client
}

func newMetaSender() *metaSender {
	return &metaSender{client: newHTTPClient()}
}

func (s *metaSender) Send(ctx context.Context, token, recipientID, text string) (string, error) {
	payload := map[string]any{
		"recipient":      map[string]string{"id": recipientID},
		"message":        map[string]string{"text": text},
		"messaging_type": "RESPONSE",
	}

	var result struct {
		MessageID string `json:"message_id"`
		Error     *graphError `json:"error"`
	}
	url := fmt.Sprintf("%s/me/messages?access_token=%s", graphAPIBase, token)
	if err := postJSON(ctx, s.client, url, "", payload, &result); err != nil {
		return "", fmt.Errorf("meta send: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("meta send: %s", result.Error.Message)
	}
	return result.MessageID, nil
}

// whatsappSender uses the WhatsApp Cloud API. Recipients are normalized to
// E.164 before the call.
type whatsappSender struct {
	client        *http.Client
	phoneNumberID string
}

func newWhatsAppSender(phoneNumberID string) *whatsappSender {
	return &whatsappSender{client: newHTTPClient(), phoneNumberID: phoneNumberID}
}

func (s *whatsappSender) Send(ctx context.Context, token, recipientID, text string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone.NormalizeWhatsAppID(recipientID),
		"type":              "text",
		"text":              map[string]string{"body": text},
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
		Error *graphError `json:"error"`
	}
	url := fmt.Sprintf("%s/%s/messages", graphAPIBase, s.phoneNumberID)
	if err := postJSON(ctx, s.client, url, token, payload, &result); err != nil {
		return "", fmt.Errorf("whatsapp send: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("whatsapp send: %s", result.Error.Message)
	}
	if len(result.Messages) == 0 {
		return "", fmt.Errorf("whatsapp send: no message id returned")
	}
	return result.Messages[0].ID, nil
}

// twitterSender posts a DM through the v2 conversations API.
type twitterSender struct {
	client *http.Client
}

func newTwitterSender() *twitterSender {
	return &twitterSender{client: newHTTPClient()}
}

func (s *twitterSender) Send(ctx context.Context, token, recipientID, text string) (string, error) {
	payload := map[string]string{"text": text}

	var result struct {
		Data struct {
			DMEventID string `json:"dm_event_id"`
		} `json:"data"`
		Detail string `json:"detail"`
	}
	url := fmt.Sprintf("https://api.twitter.com/2/dm_conversations/with/%s/messages", recipientID)
	if err := postJSON(ctx, s.client, url, token, payload, &result); err != nil {
		return "", fmt.Errorf("twitter send: %w", err)
	}
	if result.Data.DMEventID == "" {
		if result.Detail != "" {
			return "", fmt.Errorf("twitter send: %s", result.Detail)
		}
		return "", fmt.Errorf("twitter send: no event id returned")
	}
	return result.Data.DMEventID, nil
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func postJSON(ctx context.Context, client *http.Client, url, bearer string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("platform returned status %d", resp.StatusCode)
	}
	return nil
}
