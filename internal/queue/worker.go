package queue

import (
	"context"

	"github.com/hibiken/asynq"

	"replyforce_backend/platform/config"
	"replyforce_backend/platform/logger"
)

// InboundProcessor runs the decision pipeline for one inbound event.
type InboundProcessor interface {
	ProcessInbound(ctx context.Context, payload InboundMessagePayload) error
}

// OutboundSender delivers one approved reply to its platform.
type OutboundSender interface {
	SendOutbound(ctx context.Context, payload OutboundSendPayload) error
}

// CRMSyncer synchronizes one lead to the tenant's CRM.
type CRMSyncer interface {
	SyncLead(ctx context.Context, payload CRMSyncPayload) error
}

// Worker consumes the three queues and dispatches to the wired processors.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	inbound  InboundProcessor
	outbound OutboundSender
	crm      CRMSyncer
	log      *logger.Logger
}

// NewWorker builds the asynq server. Queue weights follow the configured
// per-queue concurrency so a flood of inbound events cannot starve delivery.
func NewWorker(
	cfg config.QueueConfig,
	inbound InboundProcessor,
	outbound OutboundSender,
	crm CRMSyncer,
	log *logger.Logger,
) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	inboundWeight := positive(cfg.GetQueueInboundConcurrency(), 10)
	outboundWeight := positive(cfg.GetQueueOutboundConcurrency(), 15)
	crmWeight := positive(cfg.GetQueueCRMConcurrency(), 5)

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: inboundWeight + outboundWeight + crmWeight,
		Queues: map[string]int{
			QueueInbound:  inboundWeight,
			QueueOutbound: outboundWeight,
			QueueCRM:      crmWeight,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		inbound:  inbound,
		outbound: outbound,
		crm:      crm,
		log:      log,
	}

	mux.HandleFunc(TaskInboundMessage, w.handleInboundMessage)
	mux.HandleFunc(TaskOutboundSend, w.handleOutboundSend)
	mux.HandleFunc(TaskCRMSync, w.handleCRMSync)

	return w, nil
}

func (w *Worker) handleInboundMessage(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseInboundMessagePayload(task)
	if err != nil {
		return err
	}
	if err := w.inbound.ProcessInbound(ctx, payload); err != nil {
		w.log.QueueError(TaskInboundMessage, err)
		return err
	}
	return nil
}

func (w *Worker) handleOutboundSend(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOutboundSendPayload(task)
	if err != nil {
		return err
	}
	if err := w.outbound.SendOutbound(ctx, payload); err != nil {
		w.log.QueueError(TaskOutboundSend, err)
		return err
	}
	return nil
}

func (w *Worker) handleCRMSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCRMSyncPayload(task)
	if err != nil {
		return err
	}
	if err := w.crm.SyncLead(ctx, payload); err != nil {
		w.log.QueueError(TaskCRMSync, err)
		return err
	}
	return nil
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("queue worker stopped", "error", err)
	}
}

func positive(v, fallback int) int {
	if v < 1 {
		return fallback
	}
	return v
}
