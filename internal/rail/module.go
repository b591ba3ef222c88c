package rail

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/adapter/custody"
	"github.com/polkiloo/payouts/internal/adapter/processor"
	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/metrics"
	"github.com/polkiloo/payouts/internal/notify"
)

// Module provides the rail registry.
var Module = fx.Provide(
	func(c *custody.Client) Custody { return c },
	func(c *processor.Client) Processor { return c },
	newRegistry,
)

type registryParams struct {
	fx.In

	Config    *config.Config
	Custody   Custody
	Processor Processor
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func newRegistry(p registryParams) *Registry {
	return NewRegistry(p.Config.Rails, p.Custody, p.Processor, p.Notifier, p.Metrics, p.Logger.Named("rail"))
}
