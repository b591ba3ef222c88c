package risk

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/adapter/chainalysis"
	"github.com/polkiloo/payouts/internal/adapter/seon"
	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/repository"
	"github.com/polkiloo/payouts/internal/metrics"
)

// Module provides the risk gate backed by the SEON and Chainalysis clients.
var Module = fx.Provide(
	func(c *seon.Client) Scorer { return c },
	func(c *chainalysis.Client) Screener { return c },
	newGate,
)

type gateParams struct {
	fx.In

	Config   *config.Config
	Users    repository.UserRepository
	Scorer   Scorer
	Screener Screener
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func newGate(p gateParams) (*Gate, error) {
	return New(p.Config.Risk, p.Users, p.Scorer, p.Screener, p.Metrics, p.Logger.Named("risk"))
}
