package rail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/adapter/custody"
	"github.com/polkiloo/payouts/internal/adapter/processor"
	"github.com/polkiloo/payouts/internal/config"
	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/metrics"
	testhelpers "github.com/polkiloo/payouts/internal/test"
)

const (
	btcAddress    = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	rippleAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	totpSecret    = "JBSWY3DPEHPK3PXP"
)

func railsConfig() config.RailsConfig {
	return config.RailsConfig{
		Enabled: map[string]bool{
			"bitcoin:BTC": true, "ethereum:ETH": true, "tron:TRX": true, "ripple:XRP": true, "fiat:FIAT": true,
		},
		MinAmounts: map[string]decimal.Decimal{
			"bitcoin": decimal.RequireFromString("0.001"),
			"fiat":    decimal.NewFromInt(10),
		},
		HotWallets: []string{"3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy"},
		TwoFactor:  map[string]bool{},
		FiatFee:    decimal.NewFromInt(1),
	}
}

type railFixture struct {
	registry  *Registry
	custody   *testhelpers.CustodyStub
	processor *testhelpers.ProcessorStub
	notifier  *testhelpers.NotifierStub
}

func newRailFixture(cfg config.RailsConfig) *railFixture {
	f := &railFixture{
		custody:   &testhelpers.CustodyStub{Fee: decimal.RequireFromString("0.0002")},
		processor: &testhelpers.ProcessorStub{},
		notifier:  &testhelpers.NotifierStub{},
	}
	f.registry = NewRegistry(cfg, f.custody, f.processor, f.notifier, metrics.New(), zap.NewNop())
	return f
}

func btcRequest(amount string) model.WithdrawalRequest {
	return model.WithdrawalRequest{
		UserID:      1,
		Rail:        model.RailBitcoin,
		Network:     model.NetworkBitcoin,
		Currency:    "BTC",
		Amount:      decimal.RequireFromString(amount),
		BalanceType: model.BalanceCrypto,
		Address:     btcAddress,
	}
}

func mustResolve(t *testing.T, r *Registry, rail model.Rail) Plugin {
	t.Helper()
	p, err := r.Resolve(rail)
	if err != nil {
		t.Fatalf("resolve %s: %v", rail, err)
	}
	return p
}

func expectCode(t *testing.T, err error, code domainErrors.Code) {
	t.Helper()
	v, ok := domainErrors.AsValidation(err)
	if !ok || v.Code != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestResolve(t *testing.T) {
	r := newRailFixture(railsConfig()).registry
	for _, rail := range r.Rails() {
		if p := mustResolve(t, r, rail); p.Rail() != rail {
			t.Fatalf("expected plugin for %s, got %s", rail, p.Rail())
		}
	}
	_, err := r.Resolve("dogecoin")
	expectCode(t, err, domainErrors.CodeUnknownPlugin)
}

func TestCryptoValidate(t *testing.T) {
	user := &model.User{ID: 1}
	ctx := context.Background()

	t.Run("sets fee", func(t *testing.T) {
		f := newRailFixture(railsConfig())
		got, err := mustResolve(t, f.registry, model.RailBitcoin).Validate(ctx, user, btcRequest("0.5"), model.NetworkBitcoin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.UserFeePaid.Equal(decimal.RequireFromString("0.0002")) {
			t.Fatalf("expected fee to be set, got %s", got.UserFeePaid)
		}
	})

	cases := []struct {
		name    string
		cfg     func(*config.RailsConfig)
		req     func(*model.WithdrawalRequest)
		network model.Network
		fee     string
		code    domainErrors.Code
	}{
		{name: "rail disabled", cfg: func(c *config.RailsConfig) { c.Enabled["bitcoin:BTC"] = false }, code: domainErrors.CodeRailDisabled},
		{name: "wrong network", network: model.NetworkEthereum, code: domainErrors.CodeRailDisabled},
		{name: "bad address", req: func(r *model.WithdrawalRequest) { r.Address = "not-an-address" }, code: domainErrors.CodeInvalidAddress},
		{name: "tag on bitcoin", req: func(r *model.WithdrawalRequest) { tag := uint32(1); r.Tag = &tag }, code: domainErrors.CodeInvalidTag},
		{name: "hot wallet", req: func(r *model.WithdrawalRequest) { r.Address = "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy" }, code: domainErrors.CodeHotWalletAddress},
		{name: "below minimum", req: func(r *model.WithdrawalRequest) { r.Amount = decimal.RequireFromString("0.0005") }, code: domainErrors.CodeBelowMinimum},
		{name: "fee exceeds amount", fee: "0.6", code: domainErrors.CodeFeeExceedsAmount},
		{name: "two factor not enabled", cfg: func(c *config.RailsConfig) { c.TwoFactor["bitcoin"] = true }, code: domainErrors.CodeTwoFactorRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := railsConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			f := newRailFixture(cfg)
			if tc.fee != "" {
				f.custody.Fee = decimal.RequireFromString(tc.fee)
			}
			req := btcRequest("0.5")
			if tc.req != nil {
				tc.req(&req)
			}
			network := tc.network
			if network == "" {
				network = model.NetworkBitcoin
			}
			_, err := mustResolve(t, f.registry, model.RailBitcoin).Validate(ctx, user, req, network)
			expectCode(t, err, tc.code)
		})
	}

	t.Run("fee estimate failure", func(t *testing.T) {
		f := newRailFixture(railsConfig())
		f.custody.FeeErr = errors.New("gateway down")
		_, err := mustResolve(t, f.registry, model.RailBitcoin).Validate(ctx, user, btcRequest("0.5"), model.NetworkBitcoin)
		if err == nil {
			t.Fatal("expected error")
		}
		if _, ok := domainErrors.AsValidation(err); ok {
			t.Fatal("infrastructure failures are not validation errors")
		}
	})
}

func TestTwoFactor(t *testing.T) {
	cfg := railsConfig()
	cfg.TwoFactor["bitcoin"] = true
	f := newRailFixture(cfg)
	plugin := mustResolve(t, f.registry, model.RailBitcoin)
	user := &model.User{ID: 1, TwoFactorEnabled: true, TwoFactorSecret: totpSecret}

	req := btcRequest("0.5")
	req.TwoFactorCode = "000000"
	code, err := totp.GenerateCode(totpSecret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if code == req.TwoFactorCode {
		req.TwoFactorCode = "111111"
	}
	_, err = plugin.Validate(context.Background(), user, req, model.NetworkBitcoin)
	expectCode(t, err, domainErrors.CodeTwoFactorInvalid)

	req.TwoFactorCode = code
	if _, err := plugin.Validate(context.Background(), user, req, model.NetworkBitcoin); err != nil {
		t.Fatalf("expected valid code to pass, got %v", err)
	}
}

func TestRippleAcceptsTag(t *testing.T) {
	cfg := railsConfig()
	f := newRailFixture(cfg)
	f.custody.Fee = decimal.NewFromInt(1)
	tag := uint32(12345)
	req := model.WithdrawalRequest{
		UserID: 1, Rail: model.RailRipple, Network: model.NetworkRipple, Currency: "XRP",
		Amount: decimal.NewFromInt(50), Address: rippleAddress, Tag: &tag,
	}
	if _, err := mustResolve(t, f.registry, model.RailRipple).Validate(context.Background(), &model.User{}, req, model.NetworkRipple); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newWithdrawal(req model.WithdrawalRequest) *model.Withdrawal {
	return &model.Withdrawal{
		ID:            uuid.New(),
		Plugin:        req.Rail,
		Network:       req.Network,
		UserID:        req.UserID,
		Currency:      req.Currency,
		TotalValue:    req.Amount,
		Status:        model.StatusProcessing,
		RequestFields: req.Fields(),
	}
}

func TestCryptoSend(t *testing.T) {
	f := newRailFixture(railsConfig())
	plugin := mustResolve(t, f.registry, model.RailBitcoin)
	req := btcRequest("0.5")
	w := newWithdrawal(req)

	res, err := plugin.Send(context.Background(), &model.User{ID: 1}, req, w)
	if err != nil || res.Status != model.StatusPending || res.ExternalID != "" {
		t.Fatalf("unexpected send result %+v err=%v", res, err)
	}
	if f.custody.TransferCount() != 0 {
		t.Fatal("send must not move funds on crypto rails")
	}
	if sent := f.notifier.Notifications(); len(sent) != 1 || sent[0].Status != model.StatusPending {
		t.Fatalf("expected pending notification, got %+v", sent)
	}
}

func TestCryptoSendBackground(t *testing.T) {
	f := newRailFixture(railsConfig())
	plugin := mustResolve(t, f.registry, model.RailBitcoin)
	req := btcRequest("0.5")
	req.UserFeePaid = decimal.RequireFromString("0.0002")
	w := newWithdrawal(req)

	txID, err := plugin.SendBackground(context.Background(), &model.User{ID: 1}, w, model.NetworkEthereum)
	if err != nil || txID != "" {
		t.Fatalf("mismatched network must be a no-op, got %q %v", txID, err)
	}

	txID, err = plugin.SendBackground(context.Background(), &model.User{ID: 1}, w, model.NetworkBitcoin)
	if err != nil || txID != "tx-"+w.ID.String() {
		t.Fatalf("unexpected result %q err=%v", txID, err)
	}
	transfer := f.custody.Transfers[0]
	if transfer.Reference != w.ID.String() || transfer.Address != btcAddress {
		t.Fatalf("unexpected transfer %+v", transfer)
	}
	if !transfer.Amount.Equal(decimal.RequireFromString("0.4998")) {
		t.Fatalf("expected fee deducted from payout, got %s", transfer.Amount)
	}

	f.custody.TransferFn = func(context.Context, custody.TransferRequest) (string, error) {
		return "", &domainErrors.RailError{Reason: model.ReasonTransactionFailed, Permanent: true}
	}
	_, err = plugin.SendBackground(context.Background(), &model.User{ID: 1}, w, model.NetworkBitcoin)
	if !domainErrors.IsPermanent(err) || domainErrors.FailureReason(err) != model.ReasonTransactionFailed {
		t.Fatalf("expected rail error to survive wrapping, got %v", err)
	}
}

func fiatRequest(amount int64, account string) model.WithdrawalRequest {
	return model.WithdrawalRequest{
		UserID: 1, Rail: model.RailFiat, Network: model.NetworkFiat, Currency: "USD",
		Amount: decimal.NewFromInt(amount), BalanceType: model.BalanceCash, AccountID: account,
	}
}

func TestFiatValidate(t *testing.T) {
	f := newRailFixture(railsConfig())
	plugin := mustResolve(t, f.registry, model.RailFiat)
	ctx := context.Background()

	got, err := plugin.Validate(ctx, &model.User{}, fiatRequest(50, "ACC123456"), model.NetworkFiat)
	if err != nil || !got.UserFeePaid.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected result %+v err=%v", got, err)
	}

	_, err = plugin.Validate(ctx, &model.User{}, fiatRequest(50, "bad id!"), model.NetworkFiat)
	expectCode(t, err, domainErrors.CodeInvalidAccount)

	_, err = plugin.Validate(ctx, &model.User{}, fiatRequest(5, "ACC123456"), model.NetworkFiat)
	expectCode(t, err, domainErrors.CodeBelowMinimum)
}

func TestFiatSend(t *testing.T) {
	f := newRailFixture(railsConfig())
	plugin := mustResolve(t, f.registry, model.RailFiat)
	req := fiatRequest(50, "ACC123456")
	req.UserFeePaid = decimal.NewFromInt(1)
	w := newWithdrawal(req)

	res, err := plugin.Send(context.Background(), &model.User{ID: 1}, req, w)
	if err != nil || res.Status != model.StatusCompleted || res.ExternalID != "po-"+w.ID.String() {
		t.Fatalf("unexpected send result %+v err=%v", res, err)
	}
	if !f.processor.Payouts[0].Amount.Equal(decimal.NewFromInt(49)) {
		t.Fatalf("expected fee deducted, got %s", f.processor.Payouts[0].Amount)
	}

	id, err := plugin.SendBackground(context.Background(), &model.User{ID: 1}, w, model.NetworkFiat)
	if err != nil || id != res.ExternalID {
		t.Fatalf("expected idempotent resubmission, got %q err=%v", id, err)
	}
	if id, err := plugin.SendBackground(context.Background(), &model.User{ID: 1}, w, model.NetworkBitcoin); id != "" || err != nil {
		t.Fatalf("expected no-op for other networks, got %q %v", id, err)
	}

	f.processor.PayoutFn = func(context.Context, processor.PayoutRequest) (processor.PayoutResult, error) {
		return processor.PayoutResult{}, errors.New("processor down")
	}
	if _, err := plugin.Send(context.Background(), &model.User{ID: 1}, req, w); err == nil {
		t.Fatal("expected payout error")
	}
}
