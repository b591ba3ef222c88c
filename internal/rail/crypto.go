package rail

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/adapter/custody"
	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

// cryptoRail settles through the custody gateway. Send only queues the
// withdrawal; the retry worker submits the transfer.
type cryptoRail struct {
	*deps
	rail    model.Rail
	address func(string) bool
	tagged  bool
}

func (c *cryptoRail) Rail() model.Rail { return c.rail }

func (c *cryptoRail) Validate(ctx context.Context, user *model.User, req model.WithdrawalRequest, network model.Network) (model.WithdrawalRequest, error) {
	if err := c.checkCommon(c.rail, user, req, network); err != nil {
		return req, err
	}
	if !c.address(req.Address) {
		return req, domainErrors.NewValidationError(domainErrors.CodeInvalidAddress)
	}
	if req.Tag != nil && !c.tagged {
		return req, domainErrors.NewValidationError(domainErrors.CodeInvalidTag)
	}
	if c.cfg.IsHotWallet(req.Address) {
		return req, domainErrors.NewValidationError(domainErrors.CodeHotWalletAddress)
	}

	start := time.Now()
	fee, err := c.custody.EstimateFee(ctx, custody.FeeRequest{
		Network:  network,
		Currency: req.Currency,
		Address:  req.Address,
		Amount:   req.Amount,
	})
	c.metrics.ObserveRail(string(c.rail), "estimate_fee", start)
	if err != nil {
		return req, sendError(c.rail, "estimate fee", err)
	}
	if err := c.checkAmount(c.rail, req.Amount, fee); err != nil {
		return req, err
	}

	req.UserFeePaid = fee
	return req, nil
}

func (c *cryptoRail) Send(ctx context.Context, _ *model.User, _ model.WithdrawalRequest, w *model.Withdrawal) (model.SendResult, error) {
	c.notifyUser(ctx, w, model.StatusPending)
	return model.SendResult{Status: model.StatusPending}, nil
}

func (c *cryptoRail) SendBackground(ctx context.Context, _ *model.User, w *model.Withdrawal, network model.Network) (string, error) {
	if network != c.rail.Network() {
		return "", nil
	}
	req := w.Request()

	start := time.Now()
	txID, err := c.custody.Transfer(ctx, custody.TransferRequest{
		Reference: reference(w),
		Network:   network,
		Currency:  w.Currency,
		Address:   req.Address,
		Tag:       req.Tag,
		Amount:    payoutAmount(req),
	})
	c.metrics.ObserveRail(string(c.rail), "transfer", start)
	if err != nil {
		return "", sendError(c.rail, "transfer", err)
	}

	c.logger.Info("transfer submitted",
		zap.String("withdrawal_id", w.ID.String()),
		zap.String("rail", string(c.rail)),
		zap.String("transaction_id", txID),
	)
	return txID, nil
}

type bitcoinRail struct{ cryptoRail }

func (*bitcoinRail) sealed() {}

type ethereumRail struct{ cryptoRail }

func (*ethereumRail) sealed() {}

type tronRail struct{ cryptoRail }

func (*tronRail) sealed() {}

type rippleRail struct{ cryptoRail }

func (*rippleRail) sealed() {}
