package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/domain/repository"
	"github.com/polkiloo/payouts/internal/metrics"
)

// LedgerOptions selects the balance a mutation applies to.
type LedgerOptions struct {
	BalanceType   model.BalanceType
	AllowNegative bool
}

// Ledger mutates user balances and records every delta.
type Ledger struct {
	balances repository.LedgerRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewLedger constructs Ledger. balances serves the read model only;
// mutations always go through the caller's unit of work.
func NewLedger(balances repository.LedgerRepository, m *metrics.Metrics, logger *zap.Logger) *Ledger {
	return &Ledger{balances: balances, metrics: m, logger: logger.Named("ledger"), now: time.Now}
}

type balanceEvent struct {
	UserID           int64                 `json:"userId"`
	BalanceType      model.BalanceType     `json:"balanceType"`
	Amount           decimal.Decimal       `json:"amount"`
	ResultantBalance decimal.Decimal       `json:"resultantBalance"`
	TransactionType  model.TransactionType `json:"transactionType"`
	TransactionID    uuid.UUID             `json:"transactionId"`
}

// Debit takes amount from the user's balance.
func (l *Ledger) Debit(ctx context.Context, uow repository.UnitOfWork, userID int64, amount decimal.Decimal, txType model.TransactionType, meta map[string]any, opts LedgerOptions) (*model.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, domainErrors.ErrInvalidAmount
	}
	return l.apply(ctx, uow, userID, amount.Neg(), txType, meta, opts)
}

// Credit adds amount to the user's balance.
func (l *Ledger) Credit(ctx context.Context, uow repository.UnitOfWork, userID int64, amount decimal.Decimal, txType model.TransactionType, meta map[string]any, opts LedgerOptions) (*model.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, domainErrors.ErrInvalidAmount
	}
	return l.apply(ctx, uow, userID, amount, txType, meta, opts)
}

func (l *Ledger) apply(ctx context.Context, uow repository.UnitOfWork, userID int64, delta decimal.Decimal, txType model.TransactionType, meta map[string]any, opts LedgerOptions) (*model.LedgerTransaction, error) {
	resultant, err := uow.Ledger().Adjust(ctx, userID, opts.BalanceType, delta, opts.AllowNegative)
	if err != nil {
		if errors.Is(err, domainErrors.ErrInsufficientBalance) {
			return nil, insufficientBalance(opts.BalanceType)
		}
		return nil, fmt.Errorf("adjust balance: %w", err)
	}

	entry := &model.LedgerTransaction{
		ID:               uuid.New(),
		UserID:           userID,
		Amount:           delta,
		TransactionType:  txType,
		BalanceType:      opts.BalanceType,
		ResultantBalance: resultant,
		Meta:             meta,
		CreatedAt:        l.now(),
	}
	if err := uow.Ledger().Append(ctx, entry); err != nil {
		l.logger.Error("ledger audit write failed",
			zap.Int64("user_id", userID),
			zap.String("amount", delta.String()),
			zap.String("balance_type", string(opts.BalanceType)),
			zap.String("transaction_type", string(txType)),
			zap.String("resultant_balance", resultant.String()),
			zap.Any("meta", meta),
			zap.Error(err),
		)
		l.metrics.LedgerAuditFailure()
	}

	payload, err := json.Marshal(balanceEvent{
		UserID:           userID,
		BalanceType:      opts.BalanceType,
		Amount:           delta,
		ResultantBalance: resultant,
		TransactionType:  txType,
		TransactionID:    entry.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal balance event: %w", err)
	}
	err = uow.Outbox().Append(ctx, model.OutboxEvent{
		ID:          uuid.New(),
		Aggregate:   model.AggregateBalance,
		AggregateID: fmt.Sprintf("%d", userID),
		Type:        model.EventBalanceUpdated,
		Payload:     payload,
		CreatedAt:   entry.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("append balance event: %w", err)
	}
	return entry, nil
}

// Balances returns both balances of a user.
func (l *Ledger) Balances(ctx context.Context, userID int64) (model.Balances, error) {
	cash, err := l.balances.Balance(ctx, userID, model.BalanceCash)
	if err != nil {
		return model.Balances{}, err
	}
	crypto, err := l.balances.Balance(ctx, userID, model.BalanceCrypto)
	if err != nil {
		return model.Balances{}, err
	}
	return model.Balances{Cash: cash, Crypto: crypto}, nil
}

// History lists the ledger rows of one balance in order.
func (l *Ledger) History(ctx context.Context, userID int64, balanceType model.BalanceType) ([]model.LedgerTransaction, error) {
	return l.balances.History(ctx, userID, balanceType)
}

func insufficientBalance(balanceType model.BalanceType) error {
	if balanceType == model.BalanceCrypto {
		return domainErrors.NewValidationError(domainErrors.CodeInsufficientCryptoBalance)
	}
	return domainErrors.NewValidationError(domainErrors.CodeInsufficientCashBalance)
}
