package test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polkiloo/payouts/internal/domain/model"
)

// SubmissionCall captures arguments passed to a withdrawal or transfer submission.
type SubmissionCall struct {
	UserID  int64
	Request model.RawRequest
	Session string
}

// WithdrawalFacadeStub provides controllable behaviour for withdrawal endpoints.
type WithdrawalFacadeStub struct {
	WithdrawFn func(context.Context, int64, model.RawRequest, string) (*model.SendResult, error)
	TransferFn func(context.Context, int64, model.RawRequest, string) (*model.SendResult, error)

	mu    sync.Mutex
	calls []SubmissionCall
}

// Withdraw records the call and delegates to the override or returns a pending result.
func (s *WithdrawalFacadeStub) Withdraw(ctx context.Context, userID int64, raw model.RawRequest, session string) (*model.SendResult, error) {
	s.record(userID, raw, session)
	if s.WithdrawFn != nil {
		return s.WithdrawFn(ctx, userID, raw, session)
	}
	return &model.SendResult{WithdrawalID: uuid.New(), Status: model.StatusPending}, nil
}

// Transfer records the call and delegates to the override or returns a pending result.
func (s *WithdrawalFacadeStub) Transfer(ctx context.Context, userID int64, raw model.RawRequest, session string) (*model.SendResult, error) {
	s.record(userID, raw, session)
	if s.TransferFn != nil {
		return s.TransferFn(ctx, userID, raw, session)
	}
	return &model.SendResult{WithdrawalID: uuid.New(), Status: model.StatusPending}, nil
}

// Calls returns a snapshot of recorded submissions.
func (s *WithdrawalFacadeStub) Calls() []SubmissionCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SubmissionCall(nil), s.calls...)
}

func (s *WithdrawalFacadeStub) record(userID int64, raw model.RawRequest, session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, SubmissionCall{UserID: userID, Request: raw, Session: session})
}

// BalanceFacadeStub simulates balance operations.
type BalanceFacadeStub struct {
	BalanceFn func(context.Context, int64) (model.Balances, error)
	HistoryFn func(context.Context, int64, model.BalanceType) ([]model.LedgerTransaction, error)
}

// Balance returns stored balances or default data.
func (s BalanceFacadeStub) Balance(ctx context.Context, userID int64) (model.Balances, error) {
	if s.BalanceFn != nil {
		return s.BalanceFn(ctx, userID)
	}
	return model.Balances{Cash: decimal.NewFromInt(100), Crypto: decimal.RequireFromString("0.5")}, nil
}

// History returns preconfigured ledger entries.
func (s BalanceFacadeStub) History(ctx context.Context, userID int64, balanceType model.BalanceType) ([]model.LedgerTransaction, error) {
	if s.HistoryFn != nil {
		return s.HistoryFn(ctx, userID, balanceType)
	}
	return nil, nil
}

// ReviewFacadeStub simulates the manual review surface.
type ReviewFacadeStub struct {
	FlaggedFn func(context.Context, int) ([]model.Withdrawal, error)
	ApproveFn func(context.Context, uuid.UUID, string) (*model.SendResult, error)
	RejectFn  func(context.Context, uuid.UUID, string) (*model.Withdrawal, error)
}

// Flagged returns the configured review queue.
func (s ReviewFacadeStub) Flagged(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	if s.FlaggedFn != nil {
		return s.FlaggedFn(ctx, limit)
	}
	return nil, nil
}

// Approve delegates to override or reports a pending send.
func (s ReviewFacadeStub) Approve(ctx context.Context, id uuid.UUID, note string) (*model.SendResult, error) {
	if s.ApproveFn != nil {
		return s.ApproveFn(ctx, id, note)
	}
	return &model.SendResult{WithdrawalID: id, Status: model.StatusPending}, nil
}

// Reject delegates to override or returns a cancelled withdrawal.
func (s ReviewFacadeStub) Reject(ctx context.Context, id uuid.UUID, note string) (*model.Withdrawal, error) {
	if s.RejectFn != nil {
		return s.RejectFn(ctx, id, note)
	}
	return &model.Withdrawal{ID: id, Status: model.StatusCancelled}, nil
}

// PayoutsFacadeStub aggregates facade dependencies for HTTP layer tests.
type PayoutsFacadeStub struct {
	TokenParserStub
	*WithdrawalFacadeStub
	BalanceFacadeStub
	ReviewFacadeStub
}

// NewPayoutsFacadeStub returns a stub that authenticates every token as userID.
func NewPayoutsFacadeStub(userID int64) PayoutsFacadeStub {
	return PayoutsFacadeStub{
		TokenParserStub:      TokenParserStub{ID: userID},
		WithdrawalFacadeStub: &WithdrawalFacadeStub{},
	}
}
