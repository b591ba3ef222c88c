package rail

import (
	"context"
	"fmt"

	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/adapter/custody"
	"github.com/polkiloo/payouts/internal/adapter/processor"
	"github.com/polkiloo/payouts/internal/config"
	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/metrics"
	"github.com/polkiloo/payouts/internal/notify"
)

// Plugin is one payment rail. The set of implementations is closed.
type Plugin interface {
	Rail() model.Rail
	// Validate checks rail preconditions and returns req with the fee the
	// user pays filled in.
	Validate(ctx context.Context, user *model.User, req model.WithdrawalRequest, network model.Network) (model.WithdrawalRequest, error)
	// Send runs the synchronous part of a payout for a freshly debited
	// withdrawal.
	Send(ctx context.Context, user *model.User, req model.WithdrawalRequest, w *model.Withdrawal) (model.SendResult, error)
	// SendBackground settles a PROCESSING withdrawal and returns the external
	// transaction id. An empty id with a nil error means the rail does not
	// serve network.
	SendBackground(ctx context.Context, user *model.User, w *model.Withdrawal, network model.Network) (string, error)

	sealed()
}

// Custody is the gateway holding the platform hot wallets.
type Custody interface {
	EstimateFee(ctx context.Context, req custody.FeeRequest) (decimal.Decimal, error)
	Transfer(ctx context.Context, req custody.TransferRequest) (string, error)
}

// Processor pays out fiat withdrawals.
type Processor interface {
	Payout(ctx context.Context, req processor.PayoutRequest) (processor.PayoutResult, error)
}

// deps is shared by every rail.
type deps struct {
	cfg       config.RailsConfig
	custody   Custody
	processor Processor
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func (d *deps) checkCommon(rail model.Rail, user *model.User, req model.WithdrawalRequest, network model.Network) error {
	if network != rail.Network() || !d.cfg.RailEnabled(string(rail), string(network)) {
		return domainErrors.NewValidationError(domainErrors.CodeRailDisabled, "plugin", string(rail), "network", string(network))
	}
	if d.cfg.RequiresTwoFactor(string(rail)) {
		if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
			return domainErrors.NewValidationError(domainErrors.CodeTwoFactorRequired)
		}
		if !totp.Validate(req.TwoFactorCode, user.TwoFactorSecret) {
			return domainErrors.NewValidationError(domainErrors.CodeTwoFactorInvalid)
		}
	}
	return nil
}

func (d *deps) checkAmount(rail model.Rail, amount, fee decimal.Decimal) error {
	if minimum := d.cfg.MinAmount(string(rail)); amount.LessThan(minimum) {
		return domainErrors.NewValidationError(domainErrors.CodeBelowMinimum, "minimum", minimum.String())
	}
	if fee.GreaterThanOrEqual(amount) {
		return domainErrors.NewValidationError(domainErrors.CodeFeeExceedsAmount, "fee", fee.String())
	}
	return nil
}

func (d *deps) notifyUser(ctx context.Context, w *model.Withdrawal, status model.WithdrawalStatus) {
	n := model.Notification{UserID: w.UserID, WithdrawalID: w.ID, Status: status}
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.logger.Warn("notify user failed",
			zap.String("withdrawal_id", w.ID.String()),
			zap.Int64("user_id", w.UserID),
			zap.Error(err),
		)
	}
}

// Registry resolves rail identifiers to plugins.
type Registry struct {
	bitcoin  *bitcoinRail
	ethereum *ethereumRail
	tron     *tronRail
	ripple   *rippleRail
	fiat     *fiatRail
}

// NewRegistry builds every rail over the shared collaborators.
func NewRegistry(cfg config.RailsConfig, c Custody, p Processor, n notify.Notifier, m *metrics.Metrics, logger *zap.Logger) *Registry {
	d := &deps{cfg: cfg, custody: c, processor: p, notifier: n, metrics: m, logger: logger}
	return &Registry{
		bitcoin:  &bitcoinRail{cryptoRail{deps: d, rail: model.RailBitcoin, address: validBitcoinAddress}},
		ethereum: &ethereumRail{cryptoRail{deps: d, rail: model.RailEthereum, address: validEthereumAddress}},
		tron:     &tronRail{cryptoRail{deps: d, rail: model.RailTron, address: validTronAddress}},
		ripple:   &rippleRail{cryptoRail{deps: d, rail: model.RailRipple, address: validRippleAddress, tagged: true}},
		fiat:     &fiatRail{deps: d},
	}
}

// Resolve returns the plugin for rail or a PLUGIN_UNKNOWN validation error.
func (r *Registry) Resolve(rail model.Rail) (Plugin, error) {
	switch rail {
	case model.RailBitcoin:
		return r.bitcoin, nil
	case model.RailEthereum:
		return r.ethereum, nil
	case model.RailTron:
		return r.tron, nil
	case model.RailRipple:
		return r.ripple, nil
	case model.RailFiat:
		return r.fiat, nil
	}
	return nil, domainErrors.NewValidationError(domainErrors.CodeUnknownPlugin, "plugin", string(rail))
}

// Rails lists the identifiers the registry serves.
func (r *Registry) Rails() []model.Rail {
	return model.Rails()
}

func reference(w *model.Withdrawal) string {
	return w.ID.String()
}

func payoutAmount(req model.WithdrawalRequest) decimal.Decimal {
	return req.Amount.Sub(req.UserFeePaid)
}

func sendError(rail model.Rail, op string, err error) error {
	return fmt.Errorf("%s %s: %w", rail, op, err)
}
