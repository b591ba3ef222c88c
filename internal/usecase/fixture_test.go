package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/metrics"
	"github.com/polkiloo/payouts/internal/rail"
	"github.com/polkiloo/payouts/internal/risk"
	testhelpers "github.com/polkiloo/payouts/internal/test"
)

const (
	testUserID    int64 = 1
	btcAddress          = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	fiatAccountID       = "ACC123456"
)

type riskStub struct {
	mu       sync.Mutex
	decision model.RiskDecision
	inputs   []risk.Input
}

func (r *riskStub) Check(_ context.Context, in risk.Input) model.RiskDecision {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, in)
	if r.decision.Outcome == "" {
		return model.ClearDecision()
	}
	return r.decision
}

type fixture struct {
	cfg       *config.Config
	store     *testhelpers.MemoryStore
	custody   *testhelpers.CustodyStub
	processor *testhelpers.ProcessorStub
	notifier  *testhelpers.NotifierStub
	alerter   *testhelpers.AlerterStub
	risk      *riskStub
	metrics   *metrics.Metrics
	logs      *observer.ObservedLogs

	orchestrator *Orchestrator
	review       *Review
	settlement   *Settlement
}

func testConfig() *config.Config {
	return &config.Config{
		WithdrawalsEnabled: true,
		Retry: config.RetryConfig{
			Limit:      3,
			StaleAfter: 10 * time.Minute,
		},
		Rails: config.RailsConfig{
			Enabled: map[string]bool{
				"bitcoin:BTC": true, "ethereum:ETH": true, "tron:TRX": true, "ripple:XRP": true, "fiat:FIAT": true,
			},
			MinAmounts: map[string]decimal.Decimal{
				"bitcoin": decimal.RequireFromString("0.001"),
				"fiat":    decimal.NewFromInt(10),
			},
			TwoFactor:      map[string]bool{},
			DailyLimit:     decimal.NewFromInt(1000),
			TransferMinKYC: 2,
			FiatFee:        decimal.NewFromInt(1),
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	f := &fixture{
		cfg:       testConfig(),
		store:     testhelpers.NewMemoryStore(),
		custody:   &testhelpers.CustodyStub{Fee: decimal.RequireFromString("0.0002")},
		processor: &testhelpers.ProcessorStub{},
		notifier:  &testhelpers.NotifierStub{},
		alerter:   &testhelpers.AlerterStub{},
		risk:      &riskStub{},
		metrics:   metrics.New(),
		logs:      logs,
	}
	f.store.PutUser(model.User{
		ID:                 testUserID,
		Email:              "player@example.com",
		EmailVerified:      true,
		WithdrawalsEnabled: true,
	})
	f.store.SetBalance(testUserID, model.BalanceCrypto, decimal.NewFromInt(1))
	f.store.SetBalance(testUserID, model.BalanceCash, decimal.NewFromInt(100))

	registry := rail.NewRegistry(f.cfg.Rails, f.custody, f.processor, f.notifier, f.metrics, logger)
	d := Deps{
		Config:      f.cfg,
		Tx:          f.store,
		Users:       f.store.Users(),
		Withdrawals: f.store.Withdrawals(),
		Ledger:      NewLedger(f.store.Ledger(), f.metrics, logger),
		Plugins:     registry,
		Notifier:    f.notifier,
		Metrics:     f.metrics,
		Logger:      logger,
	}
	f.orchestrator = NewOrchestrator(d, f.risk, f.alerter)
	f.review = NewReview(d)
	f.settlement = NewSettlement(d)
	return f
}

func btcRaw(amount string) model.RawRequest {
	return model.RawRequest{Plugin: "bitcoin", Amount: amount, Fields: model.RawFields{Address: btcAddress}}
}

func fiatRaw(amount string) model.RawRequest {
	return model.RawRequest{Plugin: "fiat", Amount: amount, Fields: model.RawFields{AccountID: fiatAccountID}}
}

func (f *fixture) withdrawal(t *testing.T, res *model.SendResult) model.Withdrawal {
	t.Helper()
	if res == nil {
		t.Fatal("expected send result")
	}
	w, ok := f.store.Withdrawal(res.WithdrawalID)
	if !ok {
		t.Fatalf("withdrawal %s not stored", res.WithdrawalID)
	}
	return w
}

func (f *fixture) only(t *testing.T) model.Withdrawal {
	t.Helper()
	all := f.store.AllWithdrawals()
	if len(all) != 1 {
		t.Fatalf("expected exactly one withdrawal, got %d", len(all))
	}
	return all[0]
}

// assertConserved checks that the balance moved exactly by the sum of the
// ledger rows written for it.
func (f *fixture) assertConserved(t *testing.T, balanceType model.BalanceType, initial decimal.Decimal) {
	t.Helper()
	sum := decimal.Zero
	for _, row := range f.store.LedgerRows(testUserID) {
		if row.BalanceType == balanceType {
			sum = sum.Add(row.Amount)
		}
	}
	got := f.store.BalanceOf(testUserID, balanceType)
	if !got.Equal(initial.Add(sum)) {
		t.Fatalf("balance %s drifted from ledger: balance=%s initial=%s ledger=%s", balanceType, got, initial, sum)
	}
}

// statusTrail lists the statuses published for one withdrawal in order.
func (f *fixture) statusTrail(t *testing.T, w model.Withdrawal) []model.WithdrawalStatus {
	t.Helper()
	var out []model.WithdrawalStatus
	for _, e := range f.store.Events() {
		if e.Type != model.EventWithdrawalStatusChanged || e.AggregateID != w.ID.String() {
			continue
		}
		var payload statusEvent
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			t.Fatalf("decode status event: %v", err)
		}
		out = append(out, payload.Status)
	}
	return out
}
