// Package http assembles the API server: webhook endpoints, the realtime
// stream, channel management, and health checks.
package http

import (
	"context"

	"replyforce_backend/internal/webhook"
	"replyforce_backend/platform/config"
	"replyforce_backend/platform/logger"
)

// RouterConfig is the configuration surface the router needs.
type RouterConfig interface {
	config.HTTPConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized API dependencies. main.go populates it and
// hands it to NewEngine.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	Webhooks *webhook.Handler
	Channels *ChannelHandler
	Stream   *StreamHandler
}
