package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/payouts/internal/adapter/chainalysis"
	"github.com/polkiloo/payouts/internal/adapter/custody"
	"github.com/polkiloo/payouts/internal/adapter/processor"
	"github.com/polkiloo/payouts/internal/adapter/seon"
	"github.com/polkiloo/payouts/internal/app"
	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/gate"
	"github.com/polkiloo/payouts/internal/logger"
	"github.com/polkiloo/payouts/internal/metrics"
	"github.com/polkiloo/payouts/internal/notify"
	"github.com/polkiloo/payouts/internal/pkg/auth"
	"github.com/polkiloo/payouts/internal/rail"
	"github.com/polkiloo/payouts/internal/risk"
	"github.com/polkiloo/payouts/internal/server/http/handlers"
	"github.com/polkiloo/payouts/internal/server/http/router"
	"github.com/polkiloo/payouts/internal/storage/postgres"
	"github.com/polkiloo/payouts/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		auth.Module,
		postgres.Module,
		gate.Module,
		notify.Module,
		seon.Module,
		chainalysis.Module,
		custody.Module,
		processor.Module,
		risk.Module,
		rail.Module,
		usecase.Module,
		fx.Provide(
			func(f *app.PayoutsFacade) handlers.PayoutsFacade { return f },
			func(s *postgres.Storage) router.HealthChecker { return s },
		),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
