package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"replyforce_backend/internal/channels/tokenvault"
	"replyforce_backend/internal/notification/sse"
	"replyforce_backend/internal/queue"
	"replyforce_backend/internal/webhook"
	"replyforce_backend/platform/logger"
	"replyforce_backend/platform/validator"
)

type stubHealth struct {
	err error
}

func (s stubHealth) Ping(_ context.Context) error { return s.err }

type httpTestConfig struct{}

func (httpTestConfig) GetHTTPAddr() string              { return ":0" }
func (httpTestConfig) GetCORSAllowAll() bool            { return true }
func (httpTestConfig) GetCORSOrigins() []string         { return nil }
func (httpTestConfig) GetMetaAppSecret() string         { return "secret" }
func (httpTestConfig) GetMetaVerifyToken() string       { return "verify" }
func (httpTestConfig) GetTwitterConsumerSecret() string { return "consumer" }

type noopEnqueuer struct{}

func (noopEnqueuer) EnqueueInboundMessage(_ context.Context, _ queue.InboundMessagePayload) error {
	return nil
}
func (noopEnqueuer) EnqueueOutboundSend(_ context.Context, _ queue.OutboundSendPayload) error {
	return nil
}
func (noopEnqueuer) EnqueueCRMSync(_ context.Context, _ queue.CRMSyncPayload) error { return nil }

func newTestEngine(t *testing.T, health HealthChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := httpTestConfig{}
	log := logger.New("development")
	vault, err := tokenvault.New("6368616e676520746869732070617373776f726420746f206120736563726574")
	if err != nil {
		t.Fatalf("vault: %v", err)
	}

	return NewEngine(&App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		Webhooks: webhook.NewHandler(cfg, noopEnqueuer{}, log),
		Channels: NewChannelHandler(nil, vault, validator.New()),
		Stream:   NewStreamHandler(sse.NewBroadcaster(nil, log)),
	})
}

func TestHealthEndpoint(t *testing.T) {
	engine := newTestEngine(t, stubHealth{})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHealthEndpointDegraded(t *testing.T) {
	engine := newTestEngine(t, stubHealth{err: errors.New("db down")})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestConnectChannelRejectsInvalidBody(t *testing.T) {
	engine := newTestEngine(t, stubHealth{})

	cases := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing token", `{"tenantId":"b3b1c8a0-0000-4000-8000-000000000001","type":"FACEBOOK","platformPageId":"page-1"}`},
		{"bad channel type", `{"tenantId":"b3b1c8a0-0000-4000-8000-000000000001","type":"MYSPACE","platformPageId":"page-1","accessToken":"tok"}`},
		{"bad tenant id", `{"tenantId":"nope","type":"FACEBOOK","platformPageId":"page-1","accessToken":"tok"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/channels", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			engine.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestUpdateChannelStatusRejectsInvalidInput(t *testing.T) {
	engine := newTestEngine(t, stubHealth{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/channels/not-a-uuid/status",
		bytes.NewBufferString(`{"status":"PAUSED"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/channels/b3b1c8a0-0000-4000-8000-000000000001/status",
		bytes.NewBufferString(`{"status":"HIBERNATING"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: status = %d, want 400", rec.Code)
	}
}

func TestStreamRequiresTenantID(t *testing.T) {
	engine := newTestEngine(t, stubHealth{})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stream/conversations", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
