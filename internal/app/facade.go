package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/pkg/auth"
	"github.com/polkiloo/payouts/internal/usecase"
)

// Gate serialises submissions per user.
type Gate interface {
	Do(ctx context.Context, userID int64, fn func(context.Context) error) error
}

type PayoutsFacade struct {
	orchestrator *usecase.Orchestrator
	review       *usecase.Review
	ledger       *usecase.Ledger
	gate         Gate
	tokens       auth.Strategy
}

func NewPayoutsFacade(orchestrator *usecase.Orchestrator, review *usecase.Review, ledger *usecase.Ledger, gate Gate, tokens auth.Strategy) *PayoutsFacade {
	return &PayoutsFacade{orchestrator: orchestrator, review: review, ledger: ledger, gate: gate, tokens: tokens}
}

func (f *PayoutsFacade) ParseToken(token string) (int64, error) {
	return f.tokens.ParseToken(token)
}

func (f *PayoutsFacade) Withdraw(ctx context.Context, userID int64, raw model.RawRequest, session string) (*model.SendResult, error) {
	var res *model.SendResult
	err := f.gate.Do(ctx, userID, func(ctx context.Context) error {
		var err error
		res, err = f.orchestrator.Withdraw(ctx, userID, raw, session)
		return err
	})
	return res, err
}

func (f *PayoutsFacade) Transfer(ctx context.Context, userID int64, raw model.RawRequest, session string) (*model.SendResult, error) {
	var res *model.SendResult
	err := f.gate.Do(ctx, userID, func(ctx context.Context) error {
		var err error
		res, err = f.orchestrator.Transfer(ctx, userID, raw, session)
		return err
	})
	return res, err
}

func (f *PayoutsFacade) Balance(ctx context.Context, userID int64) (model.Balances, error) {
	return f.ledger.Balances(ctx, userID)
}

func (f *PayoutsFacade) History(ctx context.Context, userID int64, balanceType model.BalanceType) ([]model.LedgerTransaction, error) {
	return f.ledger.History(ctx, userID, balanceType)
}

func (f *PayoutsFacade) Flagged(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	return f.review.ListFlagged(ctx, limit)
}

func (f *PayoutsFacade) Approve(ctx context.Context, id uuid.UUID, note string) (*model.SendResult, error) {
	return f.review.Approve(ctx, id, note)
}

func (f *PayoutsFacade) Reject(ctx context.Context, id uuid.UUID, note string) (*model.Withdrawal, error) {
	return f.review.Reject(ctx, id, note)
}
