package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/adapter/upstream"
	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/model"
)

// Settler exposes the settlement steps the retry worker drives.
type Settler interface {
	Pending(ctx context.Context, limit int) ([]model.Withdrawal, error)
	Process(ctx context.Context, w model.Withdrawal) error
	ResetStale(ctx context.Context) (int, error)
}

// RetryWorker polls PENDING withdrawals and settles them one at a time.
type RetryWorker struct {
	settler Settler
	cfg     config.RetryConfig
	logger  *zap.Logger
	now     func() time.Time

	loop *loop
}

// NewRetryWorker constructs the worker.
func NewRetryWorker(settler Settler, cfg config.RetryConfig, logger *zap.Logger) *RetryWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	w := &RetryWorker{settler: settler, cfg: cfg, logger: logger.Named("retry_worker"), now: time.Now}
	w.loop = &loop{interval: cfg.PollInterval, fn: w.RunOnce}
	return w
}

// Start launches background polling.
func (w *RetryWorker) Start(ctx context.Context) { w.loop.start(ctx) }

// Stop waits for the current pass to finish.
func (w *RetryWorker) Stop() { w.loop.stop() }

// RunOnce sweeps stale claims and processes one batch.
func (w *RetryWorker) RunOnce(ctx context.Context) {
	if n, err := w.settler.ResetStale(ctx); err != nil {
		w.logger.Error("stale sweep failed", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("stale withdrawals reset", zap.Int("count", n))
	}

	items, err := w.settler.Pending(ctx, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("fetch pending withdrawals failed", zap.Error(err))
		return
	}

	for i, item := range items {
		if ctx.Err() != nil {
			return
		}
		if wait := model.Backoff(item.Attempts, w.cfg.Limit, w.cfg.BackoffBase, w.cfg.BackoffMax); wait > 0 && w.now().Sub(item.UpdatedAt) < wait {
			w.logger.Debug("withdrawal in backoff",
				zap.String("withdrawal_id", item.ID.String()),
				zap.Int("attempts", item.Attempts),
				zap.Duration("wait", wait),
			)
			continue
		}

		if err := w.settler.Process(ctx, item); err != nil {
			var limited upstream.TooManyRequestsError
			if errors.As(err, &limited) {
				w.logger.Warn("rail rate limited", zap.String("service", limited.Service), zap.Duration("retry_after", limited.RetryAfter))
				if !sleep(ctx, limited.RetryAfter) {
					return
				}
			} else {
				w.logger.Warn("settle withdrawal failed",
					zap.String("withdrawal_id", item.ID.String()),
					zap.String("rail", string(item.Plugin)),
					zap.Error(err),
				)
			}
		}

		if i < len(items)-1 && !sleep(ctx, w.cfg.ItemDelay) {
			return
		}
	}
}
