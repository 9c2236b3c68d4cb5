package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"replyforce_backend/internal/channels"
	"replyforce_backend/internal/channels/tokenvault"
	"replyforce_backend/internal/crm"
	"replyforce_backend/internal/delivery"
	"replyforce_backend/internal/email"
	"replyforce_backend/internal/events"
	"replyforce_backend/internal/ingestion"
	"replyforce_backend/internal/notification/sse"
	"replyforce_backend/internal/pipeline"
	"replyforce_backend/internal/queue"
	"replyforce_backend/platform/ai"
	"replyforce_backend/platform/ai/gemini"
	"replyforce_backend/platform/ai/openaicompat"
	"replyforce_backend/platform/config"
	"replyforce_backend/platform/db"
	"replyforce_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "ai_provider", cfg.AIProvider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	rdb, err := newRedisClient(cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	eventBus := events.NewInMemoryBus(log)
	registerEventLogging(eventBus, log)

	callService, err := newCallService(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize generative call service", "error", err)
		panic("failed to initialize generative call service: " + err.Error())
	}

	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewGuardrail(),
		pipeline.NewClassifier(callService, cfg.GetFastModel(), log),
		pipeline.NewSentimentEstimator(callService, cfg.GetFastModel(), log),
		pipeline.NewReplyGenerator(callService, cfg.GetPrimaryModel(), cfg.GetAITemperature(), cfg.GetAIMaxTokens(), log),
		cfg.GetAICallTimeout(),
		log,
	)

	vault, err := tokenvault.New(cfg.GetTokenVaultKey())
	if err != nil {
		log.Error("failed to initialize token vault", "error", err)
		panic("failed to initialize token vault: " + err.Error())
	}

	enqueuer, err := queue.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize queue client", "error", err)
		panic("failed to initialize queue client: " + err.Error())
	}
	defer func() { _ = enqueuer.Close() }()

	var mediaArchiver ingestion.MediaArchiver
	if archiver, err := ingestion.NewMinIOArchiver(cfg); err != nil {
		log.Error("failed to initialize media archiver", "error", err)
		panic("failed to initialize media archiver: " + err.Error())
	} else if archiver != nil {
		if err := withRetry(ctx, log, "ensure media bucket", 5, 2*time.Second, func() error {
			return archiver.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure media bucket", "error", err)
			panic("failed to ensure media bucket: " + err.Error())
		}
		mediaArchiver = archiver
		log.Info("media archiving enabled", "bucket", cfg.MediaBucket)
	} else {
		log.Warn("MINIO_ENDPOINT not configured; media archiving disabled")
	}

	channelRepo := channels.New(pool)
	ingestionRepo := ingestion.NewRepository(pool)

	coordinator := ingestion.NewCoordinator(
		rdb,
		channelRepo,
		ingestionRepo,
		orchestrator,
		enqueuer,
		eventBus,
		sse.NewPublisher(rdb),
		mediaArchiver,
		email.NewSMTPSender(cfg),
		log,
	)

	deliveryService := delivery.New(channelRepo, vault, ingestionRepo, cfg.GetWhatsAppPhoneNumberID(), log)
	crmService := crm.NewService(crm.NewRepository(pool), vault, log)

	worker, err := queue.NewWorker(cfg, coordinator, deliveryService, crmService, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	worker.Run(ctx)
}

// registerEventLogging surfaces the domain events operators care about most.
func registerEventLogging(bus events.Bus, log *logger.Logger) {
	bus.Subscribe(events.LeadBecameHot{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if hot, ok := e.(events.LeadBecameHot); ok {
			log.Info("lead became hot",
				"lead_id", hot.LeadID.String(),
				"tenant_id", hot.TenantID.String(),
				"score", hot.Score,
				"intent", hot.Intent,
			)
		}
		return nil
	}))
	bus.Subscribe(events.ConversationEscalated{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if esc, ok := e.(events.ConversationEscalated); ok {
			log.Info("conversation escalated",
				"conversation_id", esc.ConversationID.String(),
				"tenant_id", esc.TenantID.String(),
				"reason", esc.Reason,
			)
		}
		return nil
	}))
}

func newCallService(ctx context.Context, cfg config.AIConfig) (ai.CallService, error) {
	switch strings.ToLower(cfg.GetAIProvider()) {
	case "gemini":
		return gemini.New(ctx, cfg.GetGeminiAPIKey())
	case "openai", "openai-compat":
		return openaicompat.New(openaicompat.Config{
			APIKey:  cfg.GetOpenAICompatAPIKey(),
			BaseURL: cfg.GetOpenAICompatBaseURL(),
			Timeout: cfg.GetAICallTimeout(),
		}), nil
	default:
		return nil, errors.New("unknown AI_PROVIDER: " + cfg.GetAIProvider())
	}
}

func newRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if opt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
