package seon

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/config"
)

// Module provides the SEON client.
var Module = fx.Provide(newClient)

func newClient(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	return New(cfg.Seon, logger.Named("seon"))
}
