package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/config"
	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RequestGate throttles withdrawal submissions per user. It is a best effort
// guard: when Redis is unreachable requests pass through.
type RequestGate struct {
	client   scripter
	cooldown time.Duration
	lockTTL  time.Duration
	logger   *zap.Logger
}

// scripter is what the gate needs from a Redis client.
type scripter interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// New builds a RequestGate on top of a Redis client.
func New(client scripter, cfg config.GateConfig, logger *zap.Logger) *RequestGate {
	return &RequestGate{client: client, cooldown: cfg.Cooldown, lockTTL: cfg.LockTTL, logger: logger}
}

func cooldownKey(userID int64) string {
	return fmt.Sprintf("payouts:withdraw:cooldown:%d", userID)
}

func lockKey(userID int64) string {
	return fmt.Sprintf("payouts:withdraw:lock:%d", userID)
}

// Do runs fn unless another submission for userID is cooling down or in
// flight, in which case WITHDRAWAL_IN_PROGRESS is returned.
func (g *RequestGate) Do(ctx context.Context, userID int64, fn func(context.Context) error) error {
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, cooldownKey(userID), token, g.cooldown).Result()
	if err != nil {
		g.logger.Warn("request gate unavailable", zap.Int64("user_id", userID), zap.Error(err))
		return fn(ctx)
	}
	if !ok {
		return domainErrors.NewValidationError(domainErrors.CodeWithdrawalInProgress)
	}

	key := lockKey(userID)
	ok, err = g.client.SetNX(ctx, key, token, g.lockTTL).Result()
	if err != nil {
		g.logger.Warn("request gate unavailable", zap.Int64("user_id", userID), zap.Error(err))
		return fn(ctx)
	}
	if !ok {
		return domainErrors.NewValidationError(domainErrors.CodeWithdrawalInProgress)
	}
	defer g.release(ctx, userID, key, token)

	return fn(ctx)
}

func (g *RequestGate) release(ctx context.Context, userID int64, key, token string) {
	if err := releaseScript.Run(context.WithoutCancel(ctx), g.client, []string{key}, token).Err(); err != nil {
		g.logger.Warn("release withdrawal lock failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
