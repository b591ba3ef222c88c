package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/server/http/middleware"
)

// WithdrawalFacade submits withdrawals and cash to crypto transfers.
type WithdrawalFacade interface {
	Withdraw(ctx context.Context, userID int64, raw model.RawRequest, session string) (*model.SendResult, error)
	Transfer(ctx context.Context, userID int64, raw model.RawRequest, session string) (*model.SendResult, error)
}

// BalanceFacade provides balance related operations.
type BalanceFacade interface {
	Balance(ctx context.Context, userID int64) (model.Balances, error)
	History(ctx context.Context, userID int64, balanceType model.BalanceType) ([]model.LedgerTransaction, error)
}

// ReviewFacade exposes the manual review queue.
type ReviewFacade interface {
	Flagged(ctx context.Context, limit int) ([]model.Withdrawal, error)
	Approve(ctx context.Context, id uuid.UUID, note string) (*model.SendResult, error)
	Reject(ctx context.Context, id uuid.UUID, note string) (*model.Withdrawal, error)
}

// PayoutsFacade aggregates the full set of operations used across handlers.
type PayoutsFacade interface {
	middleware.TokenParser
	WithdrawalFacade
	BalanceFacade
	ReviewFacade
}
