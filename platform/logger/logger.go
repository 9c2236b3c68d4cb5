// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// TenantIDKey is the context key for tenant ID
	TenantIDKey contextKey = "tenant_id"
	// MessageIDKey is the context key for the platform message ID being processed
	MessageIDKey contextKey = "message_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, tenant_id, and message_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok && tenantID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("tenant_id", tenantID))}
	}

	if messageID, ok := ctx.Value(MessageIDKey).(string); ok && messageID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("message_id", messageID))}
	}

	return newLogger
}

// WithTenant returns a logger with the tenant ID attached.
func (l *Logger) WithTenant(tenantID string) *Logger {
	return &Logger{Logger: l.With(slog.String("tenant_id", tenantID))}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// PipelineCompleted logs the outcome of one decision cycle.
func (l *Logger) PipelineCompleted(platformMsgID, channel, leadTag string, score int, requiresHuman bool, durationMs int64, tokens int) {
	l.Info("pipeline_completed",
		slog.String("platform_msg_id", platformMsgID),
		slog.String("channel", channel),
		slog.String("lead_tag", leadTag),
		slog.Int("lead_score", score),
		slog.Bool("requires_human", requiresHuman),
		slog.Int64("duration_ms", durationMs),
		slog.Int("tokens_used", tokens),
	)
}

// PipelineBlocked logs a message suppressed by the inbound guardrail.
func (l *Logger) PipelineBlocked(platformMsgID, channel, reason string, riskScore float64) {
	l.Warn("pipeline_blocked",
		slog.String("platform_msg_id", platformMsgID),
		slog.String("channel", channel),
		slog.String("reason", reason),
		slog.Float64("risk_score", riskScore),
	)
}

// GenerativeCallFailed logs a model call failure that was recovered by a fallback.
func (l *Logger) GenerativeCallFailed(component string, err error) {
	l.Warn("generative_call_failed",
		slog.String("component", component),
		slog.String("error", err.Error()),
	)
}

// QueueError logs a queue processing error
func (l *Logger) QueueError(task string, err error) {
	l.Error("queue_error",
		slog.String("task", task),
		slog.String("error", err.Error()),
	)
}

// DeliveryError logs an outbound platform send failure
func (l *Logger) DeliveryError(channel, recipientID string, err error) {
	l.Error("delivery_error",
		slog.String("channel", channel),
		slog.String("recipient_id", recipientID),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
