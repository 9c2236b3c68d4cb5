package queue

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"replyforce_backend/platform/config"
)

// Client enqueues pipeline work. Webhook handlers use it to hand off inbound
// events; the ingestion coordinator uses it to fan out delivery and CRM work.
type Client struct {
	client *asynq.Client
}

// Enqueuer is the outbound fan-out surface the ingestion coordinator needs.
type Enqueuer interface {
	EnqueueInboundMessage(ctx context.Context, payload InboundMessagePayload) error
	EnqueueOutboundSend(ctx context.Context, payload OutboundSendPayload) error
	EnqueueCRMSync(ctx context.Context, payload CRMSyncPayload) error
}

// NewClient creates an asynq client against the configured redis.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueInboundMessage queues a normalized platform event for a pipeline
// run. At-least-once: the handler deduplicates by platform message ID.
func (c *Client) EnqueueInboundMessage(ctx context.Context, payload InboundMessagePayload) error {
	task, err := NewInboundMessageTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueInbound),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
	)
	return err
}

// EnqueueOutboundSend queues an approved reply for platform delivery.
func (c *Client) EnqueueOutboundSend(ctx context.Context, payload OutboundSendPayload) error {
	task, err := NewOutboundSendTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueOutbound),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	)
	return err
}

// EnqueueCRMSync queues lead synchronization. Retries back off; the sync
// service moves the record to dead-letter after the attempt budget.
func (c *Client) EnqueueCRMSync(ctx context.Context, payload CRMSyncPayload) error {
	task, err := NewCRMSyncTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCRM),
		asynq.MaxRetry(4),
		asynq.Timeout(time.Minute),
	)
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

var _ Enqueuer = (*Client)(nil)
