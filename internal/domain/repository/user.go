package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payouts/internal/domain/model"
)

// UserRepository reads account data and records account side effects.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	ActivePromotions(ctx context.Context, userID int64) ([]model.Promotion, error)
	AddNote(ctx context.Context, userID int64, note string) error
	AddLifetimeWithdrawn(ctx context.Context, userID int64, amount decimal.Decimal) error
	DisableWithdrawals(ctx context.Context, userID int64) error
}
