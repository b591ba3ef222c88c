package di

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/app"
	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/repository"
	"github.com/polkiloo/payouts/internal/server/http/handlers"
	"github.com/polkiloo/payouts/internal/storage/postgres"
	"github.com/polkiloo/payouts/internal/test"
	"github.com/polkiloo/payouts/internal/worker"
)

func TestModuleComposesGraphWithReplacements(t *testing.T) {
	redis := miniredis.RunT(t)
	endpoint := config.Endpoint{URL: "http://127.0.0.1:1", Timeout: time.Second}
	cfg := &config.Config{
		RunAddress:      ":0",
		DatabaseURI:     "postgres://stub",
		RedisAddress:    redis.Addr(),
		AuthSecret:      "secret",
		AdminToken:      "admin",
		ShutdownTimeout: time.Millisecond,
		Retry:           config.RetryConfig{PollInterval: time.Millisecond, BatchSize: 1, Limit: 3},
		Outbox:          config.OutboxConfig{PollInterval: time.Millisecond, BatchSize: 1},
		Gate:            config.GateConfig{Cooldown: time.Second, LockTTL: time.Second},
		Seon:            endpoint,
		Chainalysis:     endpoint,
		Custody:         endpoint,
		Processor:       endpoint,
	}
	store := test.NewMemoryStore()

	var (
		facade handlers.PayoutsFacade
		retry  *worker.RetryWorker
	)
	fxApp := fxtest.New(t,
		fx.Provide(func() context.Context { return context.Background() }),
		Module(
			fx.Replace(cfg),
			fx.Replace(zap.NewNop()),
			fx.Replace(&postgres.Storage{}),
			fx.Replace(fx.Annotate(store, fx.As(new(repository.Transactor)))),
			fx.Replace(fx.Annotate(store.Users(), fx.As(new(repository.UserRepository)))),
			fx.Replace(fx.Annotate(store.Ledger(), fx.As(new(repository.LedgerRepository)))),
			fx.Replace(fx.Annotate(store.Withdrawals(), fx.As(new(repository.WithdrawalRepository)))),
			fx.Replace(fx.Annotate(store.Outbox(), fx.As(new(repository.OutboxRepository)))),
		),
		fx.Populate(&facade, &retry),
	)

	if err := fxApp.Err(); err != nil {
		t.Fatalf("fx app returned error: %v", err)
	}
	t.Cleanup(func() { _ = fxApp.Stop(context.Background()) })
	if _, ok := facade.(*app.PayoutsFacade); !ok {
		t.Fatalf("expected payouts facade, got %T", facade)
	}
	if retry == nil {
		t.Fatal("expected retry worker instance")
	}
}
