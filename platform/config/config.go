// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides redis connection settings for dedup and pub/sub.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// QueueConfig provides settings for the asynq client and worker.
type QueueConfig interface {
	RedisConfig
	GetQueueInboundConcurrency() int
	GetQueueOutboundConcurrency() int
	GetQueueCRMConcurrency() int
}

// AIConfig provides settings for the generative call service.
type AIConfig interface {
	GetAIProvider() string
	GetGeminiAPIKey() string
	GetOpenAICompatAPIKey() string
	GetOpenAICompatBaseURL() string
	GetPrimaryModel() string
	GetFastModel() string
	GetAIMaxTokens() int
	GetAITemperature() float64
	GetAICallTimeout() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// WebhookConfig provides settings for platform webhook verification.
type WebhookConfig interface {
	GetMetaAppSecret() string
	GetMetaVerifyToken() string
	GetTwitterConsumerSecret() string
}

// VaultConfig provides the key for channel token encryption at rest.
type VaultConfig interface {
	GetTokenVaultKey() string
}

// EmailConfig provides settings for escalation email notifications.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// MediaConfig provides settings for MinIO media archiving.
type MediaConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMediaBucket() string
	IsMediaArchiveEnabled() bool
}

// WhatsAppConfig provides settings for WhatsApp Cloud API delivery.
type WhatsAppConfig interface {
	GetWhatsAppPhoneNumberID() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	RedisURL                 string
	RedisTLSInsecure         bool
	QueueInboundConcurrency  int
	QueueOutboundConcurrency int
	QueueCRMConcurrency      int
	AIProvider               string
	GeminiAPIKey             string
	OpenAICompatAPIKey       string
	OpenAICompatBaseURL      string
	PrimaryModel             string
	FastModel                string
	AIMaxTokens              int
	AITemperature            float64
	AICallTimeout            time.Duration
	CORSAllowAll             bool
	CORSOrigins              []string
	MetaAppSecret            string
	MetaVerifyToken          string
	TwitterConsumerSecret    string
	TokenVaultKey            string
	EmailEnabled             bool
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromName            string
	EmailFromAddress         string
	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MediaBucket              string
	WhatsAppPhoneNumberID    string
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// QueueConfig implementation
func (c *Config) GetQueueInboundConcurrency() int  { return c.QueueInboundConcurrency }
func (c *Config) GetQueueOutboundConcurrency() int { return c.QueueOutboundConcurrency }
func (c *Config) GetQueueCRMConcurrency() int      { return c.QueueCRMConcurrency }

// AIConfig implementation
func (c *Config) GetAIProvider() string           { return c.AIProvider }
func (c *Config) GetGeminiAPIKey() string         { return c.GeminiAPIKey }
func (c *Config) GetOpenAICompatAPIKey() string   { return c.OpenAICompatAPIKey }
func (c *Config) GetOpenAICompatBaseURL() string  { return c.OpenAICompatBaseURL }
func (c *Config) GetPrimaryModel() string         { return c.PrimaryModel }
func (c *Config) GetFastModel() string            { return c.FastModel }
func (c *Config) GetAIMaxTokens() int             { return c.AIMaxTokens }
func (c *Config) GetAITemperature() float64       { return c.AITemperature }
func (c *Config) GetAICallTimeout() time.Duration { return c.AICallTimeout }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// WebhookConfig implementation
func (c *Config) GetMetaAppSecret() string         { return c.MetaAppSecret }
func (c *Config) GetMetaVerifyToken() string       { return c.MetaVerifyToken }
func (c *Config) GetTwitterConsumerSecret() string { return c.TwitterConsumerSecret }

// VaultConfig implementation
func (c *Config) GetTokenVaultKey() string { return c.TokenVaultKey }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool      { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string   { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// MediaConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMediaBucket() string    { return c.MediaBucket }
func (c *Config) IsMediaArchiveEnabled() bool {
	return c.MinIOEndpoint != "" && c.MediaBucket != ""
}

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppPhoneNumberID() string { return c.WhatsAppPhoneNumberID }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		QueueInboundConcurrency:  mustInt(getEnv("QUEUE_AI_CONCURRENCY", "10")),
		QueueOutboundConcurrency: mustInt(getEnv("QUEUE_OUTBOUND_CONCURRENCY", "15")),
		QueueCRMConcurrency:      mustInt(getEnv("QUEUE_CRM_CONCURRENCY", "5")),
		AIProvider:               getEnv("AI_PROVIDER", "gemini"),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		OpenAICompatAPIKey:       getEnv("OPENAI_COMPAT_API_KEY", ""),
		OpenAICompatBaseURL:      getEnv("OPENAI_COMPAT_BASE_URL", "https://api.openai.com/v1"),
		PrimaryModel:             getEnv("AI_MODEL_PRIMARY", "gemini-2.0-flash"),
		FastModel:                getEnv("AI_MODEL_FAST", "gemini-2.0-flash-lite"),
		AIMaxTokens:              mustInt(getEnv("AI_MAX_TOKENS", "1000")),
		AITemperature:            mustFloat(getEnv("AI_TEMPERATURE", "0.7")),
		AICallTimeout:            mustDuration(getEnv("AI_CALL_TIMEOUT", "20s")),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		MetaAppSecret:            getEnv("META_APP_SECRET", ""),
		MetaVerifyToken:          getEnv("META_VERIFY_TOKEN", ""),
		TwitterConsumerSecret:    getEnv("TWITTER_CONSUMER_SECRET", ""),
		TokenVaultKey:            getEnv("TOKEN_VAULT_KEY", ""),
		EmailEnabled:             emailEnabled && smtpHost != "",
		SMTPHost:                 smtpHost,
		SMTPPort:                 mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "ReplyForce"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MediaBucket:              getEnv("MINIO_BUCKET_MESSAGE_MEDIA", "message-media"),
		WhatsAppPhoneNumberID:    getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
