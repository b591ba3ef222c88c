package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polkiloo/payouts/internal/domain/model"
)

// WithdrawalRepository persists withdrawals and enforces status changes
// with compare-and-set updates.
type WithdrawalRepository interface {
	Create(ctx context.Context, w *model.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error)
	// Transition returns ErrInvalidTransition for moves the state machine
	// forbids and ErrStaleTransition when the record is not in t.From.
	Transition(ctx context.Context, id uuid.UUID, t model.Transition) (*model.Withdrawal, error)
	// Claim moves PENDING to PROCESSING. It reports false when another
	// processor won the race.
	Claim(ctx context.Context, id uuid.UUID) (*model.Withdrawal, bool, error)
	// RecordFailure increments attempts on a PROCESSING record whose attempts
	// still equal observedAttempts.
	RecordFailure(ctx context.Context, id uuid.UUID, observedAttempts, retryLimit int) (*model.Withdrawal, error)
	ListPending(ctx context.Context, rails []model.Rail, limit int) ([]model.Withdrawal, error)
	ListByStatus(ctx context.Context, status model.WithdrawalStatus, limit int) ([]model.Withdrawal, error)
	ResetStale(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error)
	SumSince(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error)
}
