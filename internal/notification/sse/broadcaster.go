// Package sse pushes lightweight conversation updates to dashboard clients.
// Updates travel through redis pub/sub so every API replica sees every event
// regardless of which worker processed the message.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"replyforce_backend/platform/logger"
)

const (
	// All-tenant firehose, used by the publisher and the broadcaster.
	channelBroadcast = "broadcast:conversations"
	// Per-tenant channel pattern.
	channelTenantFmt = "tenant:%s:conversations"
)

// ConversationUpdate is the wire shape of one dashboard event.
type ConversationUpdate struct {
	TenantID       string    `json:"tenantId"`
	ConversationID string    `json:"conversationId"`
	Channel        string    `json:"channel"`
	Preview        string    `json:"preview"`
	LeadTag        string    `json:"leadTag"`
	LeadScore      int       `json:"leadScore"`
	AutoReplied    bool      `json:"autoReplied"`
	RequiresHuman  bool      `json:"requiresHuman"`
	At             time.Time `json:"at"`
}

// Publisher fans a conversation update out to redis. Called by the ingestion
// coordinator after persistence.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a redis-backed update publisher.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish sends the update to the firehose and the tenant channel. Publish
// failures are returned but are not fatal to the pipeline cycle.
func (p *Publisher) Publish(ctx context.Context, update ConversationUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("sse: marshal update: %w", err)
	}
	if err := p.rdb.Publish(ctx, channelBroadcast, data).Err(); err != nil {
		return fmt.Errorf("sse: publish broadcast: %w", err)
	}
	tenantChannel := fmt.Sprintf(channelTenantFmt, update.TenantID)
	if err := p.rdb.Publish(ctx, tenantChannel, data).Err(); err != nil {
		return fmt.Errorf("sse: publish tenant channel: %w", err)
	}
	return nil
}

// Broadcaster relays redis pub/sub messages to in-process SSE subscribers.
type Broadcaster struct {
	rdb *redis.Client
	log *logger.Logger

	mu   sync.RWMutex
	subs map[string]map[chan ConversationUpdate]struct{}
}

// NewBroadcaster creates the relay. Call Run to start consuming.
func NewBroadcaster(rdb *redis.Client, log *logger.Logger) *Broadcaster {
	return &Broadcaster{
		rdb:  rdb,
		log:  log,
		subs: make(map[string]map[chan ConversationUpdate]struct{}),
	}
}

// Subscribe registers a dashboard client for one tenant's updates. The
// returned cancel function must be called when the client disconnects.
func (b *Broadcaster) Subscribe(tenantID string) (<-chan ConversationUpdate, func()) {
	ch := make(chan ConversationUpdate, 16)

	b.mu.Lock()
	if b.subs[tenantID] == nil {
		b.subs[tenantID] = make(map[chan ConversationUpdate]struct{})
	}
	b.subs[tenantID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[tenantID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, tenantID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Run consumes the per-tenant channels until ctx is canceled.
func (b *Broadcaster) Run(ctx context.Context) {
	sub := b.rdb.PSubscribe(ctx, fmt.Sprintf(channelTenantFmt, "*"))
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var update ConversationUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				b.log.Error("sse: malformed pubsub payload", "error", err)
				continue
			}
			b.deliver(update)
		}
	}
}

func (b *Broadcaster) deliver(update ConversationUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[update.TenantID] {
		select {
		case ch <- update:
		default:
			// Slow client; drop rather than block the relay.
		}
	}
}
