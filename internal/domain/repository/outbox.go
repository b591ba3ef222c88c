package repository

import (
	"context"

	"github.com/polkiloo/payouts/internal/domain/model"
)

// OutboxRepository stores domain events until they are published.
type OutboxRepository interface {
	Append(ctx context.Context, event model.OutboxEvent) error
	// Drain locks up to limit unpublished events, hands them to publish and
	// marks them published when publish succeeds.
	Drain(ctx context.Context, limit int, publish func(context.Context, []model.OutboxEvent) error) (int, error)
}
