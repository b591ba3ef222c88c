package rail

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/polkiloo/payouts/internal/adapter/processor"
	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

var accountValidator = validator.New()

// fiatRail pays out through the card/bank processor and settles synchronously.
type fiatRail struct {
	*deps
}

func (*fiatRail) sealed() {}

func (f *fiatRail) Rail() model.Rail { return model.RailFiat }

func (f *fiatRail) Validate(_ context.Context, user *model.User, req model.WithdrawalRequest, network model.Network) (model.WithdrawalRequest, error) {
	if err := f.checkCommon(model.RailFiat, user, req, network); err != nil {
		return req, err
	}
	if err := accountValidator.Var(req.AccountID, "required,alphanum,min=6,max=34"); err != nil {
		return req, domainErrors.NewValidationError(domainErrors.CodeInvalidAccount)
	}
	if err := f.checkAmount(model.RailFiat, req.Amount, f.cfg.FiatFee); err != nil {
		return req, err
	}
	req.UserFeePaid = f.cfg.FiatFee
	return req, nil
}

func (f *fiatRail) Send(ctx context.Context, _ *model.User, req model.WithdrawalRequest, w *model.Withdrawal) (model.SendResult, error) {
	id, err := f.payout(ctx, req, w)
	if err != nil {
		return model.SendResult{}, err
	}
	f.notifyUser(ctx, w, model.StatusCompleted)
	return model.SendResult{Status: model.StatusCompleted, ExternalID: id}, nil
}

// SendBackground re-submits the payout. The withdrawal id is the idempotency
// key, so a payout that already went through is returned instead of repeated.
func (f *fiatRail) SendBackground(ctx context.Context, _ *model.User, w *model.Withdrawal, network model.Network) (string, error) {
	if network != model.NetworkFiat {
		return "", nil
	}
	return f.payout(ctx, w.Request(), w)
}

func (f *fiatRail) payout(ctx context.Context, req model.WithdrawalRequest, w *model.Withdrawal) (string, error) {
	start := time.Now()
	res, err := f.processor.Payout(ctx, processor.PayoutRequest{
		Reference: reference(w),
		AccountID: req.AccountID,
		Amount:    payoutAmount(req),
		Currency:  w.Currency,
	})
	f.metrics.ObserveRail(string(model.RailFiat), "payout", start)
	if err != nil {
		return "", sendError(model.RailFiat, "payout", err)
	}
	return res.ID, nil
}
