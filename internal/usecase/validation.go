package usecase

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// checkEssentials verifies email, feature switches, the daily limit and
// promotion wagering.
func (f *workflow) checkEssentials(ctx context.Context, user *model.User, req model.WithdrawalRequest) error {
	if !user.EmailVerified {
		return domainErrors.NewValidationError(domainErrors.CodeEmailNotVerified)
	}
	if !f.cfg.WithdrawalsEnabled || !user.WithdrawalsEnabled {
		return domainErrors.NewValidationError(domainErrors.CodeWithdrawalsDisabled)
	}

	limit := user.DailyWithdrawLimit
	if !limit.IsPositive() {
		limit = f.cfg.Rails.DailyLimit
	}
	if limit.IsPositive() {
		since := startOfDay(f.now())
		deposits, err := f.ledger.balances.DepositsSince(ctx, user.ID, since)
		if err != nil {
			return fmt.Errorf("sum deposits: %w", err)
		}
		spent, err := f.withdrawals.SumSince(ctx, user.ID, since)
		if err != nil {
			return fmt.Errorf("sum withdrawals: %w", err)
		}
		if spent.Add(req.Amount).GreaterThan(limit.Add(deposits)) {
			return domainErrors.NewValidationError(domainErrors.CodeDailyLimitExceeded, "limit", limit.Add(deposits).String())
		}
	}

	promotions, err := f.users.ActivePromotions(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load promotions: %w", err)
	}
	for _, p := range promotions {
		if !p.Fulfilled() {
			return domainErrors.NewValidationError(domainErrors.CodeWageringIncomplete,
				"remaining", p.WagerRequired.Sub(p.Wagered).String())
		}
	}
	return nil
}
