package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/repository"
	"github.com/polkiloo/payouts/internal/gate"
	"github.com/polkiloo/payouts/internal/metrics"
	"github.com/polkiloo/payouts/internal/notify"
	"github.com/polkiloo/payouts/internal/usecase"
	"github.com/polkiloo/payouts/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		func(g *gate.RequestGate) Gate { return g },
		NewPayoutsFacade,
		newHTTPServer,
		newRetryWorker,
		newOutboxDispatcher,
	),
	fx.Invoke(registerLifecycle),
)

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    p.Config.RunAddress,
		Handler: p.Router,
	}
}

type workerParams struct {
	fx.In

	Settlement *usecase.Settlement
	Config     *config.Config
	Logger     *zap.Logger
}

func newRetryWorker(p workerParams) *worker.RetryWorker {
	return worker.NewRetryWorker(p.Settlement, p.Config.Retry, p.Logger)
}

type dispatcherParams struct {
	fx.In

	Outbox    repository.OutboxRepository
	Publisher notify.EventPublisher
	Config    *config.Config
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func newOutboxDispatcher(p dispatcherParams) *worker.OutboxDispatcher {
	return worker.NewOutboxDispatcher(p.Outbox, p.Publisher, p.Config.Outbox, p.Metrics, p.Logger)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *zap.Logger
	Server     *http.Server
	Retry      *worker.RetryWorker
	Dispatcher *worker.OutboxDispatcher
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting payouts", zap.String("addr", p.Server.Addr))
			p.Retry.Start(ctx)
			p.Dispatcher.Start(ctx)
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", zap.Error(err))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			err := p.Server.Shutdown(shutdownCtx)
			p.Retry.Stop()
			p.Dispatcher.Stop()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Logger.Info("payouts stopped")
			return nil
		},
	})
}
