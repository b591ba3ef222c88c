package auth

import (
	"go.uber.org/fx"

	"github.com/polkiloo/payouts/internal/config"
)

// Module provides the token strategy via fx.
var Module = fx.Options(
	fx.Provide(newTokenStrategy),
)

type strategyParams struct {
	fx.In

	Config *config.Config
}

func newTokenStrategy(p strategyParams) Strategy {
	return NewMACStrategy(p.Config.AuthSecret, Options{})
}
