package test

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/payouts/internal/adapter/custody"
	"github.com/polkiloo/payouts/internal/adapter/processor"
	"github.com/polkiloo/payouts/internal/domain/model"
)

// ScorerStub returns a fixed fraud score unless ScoreFn is set.
type ScorerStub struct {
	Result  model.FraudScore
	Err     error
	ScoreFn func(context.Context, model.FraudScoreRequest) (model.FraudScore, error)

	mu    sync.Mutex
	Calls []model.FraudScoreRequest
}

func (s *ScorerStub) Score(ctx context.Context, req model.FraudScoreRequest) (model.FraudScore, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, req)
	s.mu.Unlock()
	if s.ScoreFn != nil {
		return s.ScoreFn(ctx, req)
	}
	if s.Err != nil {
		return model.FraudScore{}, s.Err
	}
	if s.Result.State == "" {
		return model.FraudScore{State: "APPROVE"}, nil
	}
	return s.Result, nil
}

// ScreenerStub returns a fixed screening result.
type ScreenerStub struct {
	Result model.AddressScreening
	Err    error

	mu        sync.Mutex
	Addresses []string
}

func (s *ScreenerStub) Screen(_ context.Context, address string) (model.AddressScreening, error) {
	s.mu.Lock()
	s.Addresses = append(s.Addresses, address)
	s.mu.Unlock()
	if s.Err != nil {
		return model.AddressScreening{}, s.Err
	}
	res := s.Result
	res.Address = address
	if res.Risk == "" {
		res.Risk = "Low"
	}
	return res, nil
}

// CustodyStub records transfers and returns configured answers.
type CustodyStub struct {
	Fee        decimal.Decimal
	FeeErr     error
	TransferFn func(context.Context, custody.TransferRequest) (string, error)

	mu        sync.Mutex
	Transfers []custody.TransferRequest
}

func (s *CustodyStub) EstimateFee(context.Context, custody.FeeRequest) (decimal.Decimal, error) {
	if s.FeeErr != nil {
		return decimal.Zero, s.FeeErr
	}
	return s.Fee, nil
}

func (s *CustodyStub) Transfer(ctx context.Context, req custody.TransferRequest) (string, error) {
	s.mu.Lock()
	s.Transfers = append(s.Transfers, req)
	s.mu.Unlock()
	if s.TransferFn != nil {
		return s.TransferFn(ctx, req)
	}
	return "tx-" + req.Reference, nil
}

// TransferCount reports how many transfers were submitted.
func (s *CustodyStub) TransferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Transfers)
}

// ProcessorStub records fiat payouts.
type ProcessorStub struct {
	PayoutFn func(context.Context, processor.PayoutRequest) (processor.PayoutResult, error)

	mu      sync.Mutex
	Payouts []processor.PayoutRequest
}

func (s *ProcessorStub) Payout(ctx context.Context, req processor.PayoutRequest) (processor.PayoutResult, error) {
	s.mu.Lock()
	s.Payouts = append(s.Payouts, req)
	s.mu.Unlock()
	if s.PayoutFn != nil {
		return s.PayoutFn(ctx, req)
	}
	return processor.PayoutResult{ID: "po-" + req.Reference, Status: "paid"}, nil
}

// NotifierStub collects notifications.
type NotifierStub struct {
	Err error

	mu   sync.Mutex
	Sent []model.Notification
}

func (s *NotifierStub) Notify(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, n)
	return s.Err
}

// Notifications returns a copy of what was sent.
func (s *NotifierStub) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.Sent...)
}

// AlerterStub collects operational alerts.
type AlerterStub struct {
	Err error

	mu     sync.Mutex
	Alerts []model.Alert
}

func (s *AlerterStub) Alert(_ context.Context, a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Alerts = append(s.Alerts, a)
	return s.Err
}

// Count reports how many alerts were raised.
func (s *AlerterStub) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Alerts)
}
