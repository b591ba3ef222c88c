package gate

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/config"
)

// Module provides the Redis client and the request gate.
var Module = fx.Options(
	fx.Provide(newRedisClient, newRequestGate),
)

func newRedisClient(lc fx.Lifecycle, cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func newRequestGate(client *redis.Client, cfg *config.Config, logger *zap.Logger) *RequestGate {
	return New(client, cfg.Gate, logger.Named("gate"))
}
