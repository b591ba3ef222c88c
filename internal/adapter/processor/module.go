package processor

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/config"
)

var Module = fx.Provide(newClient)

func newClient(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	return New(cfg.Processor, logger.Named("processor"))
}
