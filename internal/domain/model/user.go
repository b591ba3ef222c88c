package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User carries the account data withdrawals depend on.
type User struct {
	ID                 int64
	Email              string
	EmailVerified      bool
	Locked             bool
	WithdrawalsEnabled bool
	TwoFactorEnabled   bool
	TwoFactorSecret    string
	KYCLevel           int
	DailyWithdrawLimit decimal.Decimal
	LifetimeWithdrawn  decimal.Decimal
	CreatedAt          time.Time
}

// Promotion is a bonus whose wagering requirement blocks withdrawals until met.
type Promotion struct {
	ID            int64
	UserID        int64
	WagerRequired decimal.Decimal
	Wagered       decimal.Decimal
	Active        bool
}

// Fulfilled reports whether the promotion no longer blocks withdrawals.
func (p Promotion) Fulfilled() bool {
	return !p.Active || p.Wagered.GreaterThanOrEqual(p.WagerRequired)
}
