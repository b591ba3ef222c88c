package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payouts/internal/domain/model"
)

// LedgerRepository mutates balances and stores their transaction log.
type LedgerRepository interface {
	// Adjust applies delta in one atomic statement and returns the resulting
	// balance. Negative deltas that would overdraw return
	// ErrInsufficientBalance unless allowNegative is set.
	Adjust(ctx context.Context, userID int64, balanceType model.BalanceType, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error)
	// Append writes the audit row. Inside a unit of work a failure leaves the
	// surrounding transaction usable.
	Append(ctx context.Context, entry *model.LedgerTransaction) error
	Balance(ctx context.Context, userID int64, balanceType model.BalanceType) (decimal.Decimal, error)
	History(ctx context.Context, userID int64, balanceType model.BalanceType) ([]model.LedgerTransaction, error)
	DepositsSince(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error)
}
