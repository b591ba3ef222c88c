package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/domain/repository"
	"github.com/polkiloo/payouts/internal/metrics"
	"github.com/polkiloo/payouts/internal/notify"
)

// OutboxDispatcher publishes committed domain events.
type OutboxDispatcher struct {
	outbox    repository.OutboxRepository
	publisher notify.EventPublisher
	batchSize int
	metrics   *metrics.Metrics
	logger    *zap.Logger

	loop *loop
}

// NewOutboxDispatcher constructs the dispatcher.
func NewOutboxDispatcher(outbox repository.OutboxRepository, publisher notify.EventPublisher, cfg config.OutboxConfig, m *metrics.Metrics, logger *zap.Logger) *OutboxDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	d := &OutboxDispatcher{
		outbox:    outbox,
		publisher: publisher,
		batchSize: cfg.BatchSize,
		metrics:   m,
		logger:    logger.Named("outbox"),
	}
	d.loop = &loop{interval: cfg.PollInterval, fn: d.RunOnce}
	return d
}

// Start launches background polling.
func (d *OutboxDispatcher) Start(ctx context.Context) { d.loop.start(ctx) }

// Stop waits for the current pass to finish.
func (d *OutboxDispatcher) Stop() { d.loop.stop() }

// RunOnce drains full batches until the backlog is empty or publishing fails.
func (d *OutboxDispatcher) RunOnce(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := d.outbox.Drain(ctx, d.batchSize, d.publish)
		if err != nil {
			d.logger.Warn("publish outbox events failed", zap.Error(err))
			return
		}
		if n < d.batchSize {
			return
		}
	}
}

func (d *OutboxDispatcher) publish(ctx context.Context, events []model.OutboxEvent) error {
	if err := d.publisher.Publish(ctx, events); err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Type]++
	}
	for eventType, n := range counts {
		d.metrics.OutboxPublished(eventType, n)
	}
	return nil
}
