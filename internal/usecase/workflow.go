package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/domain/repository"
	"github.com/polkiloo/payouts/internal/metrics"
	"github.com/polkiloo/payouts/internal/notify"
	"github.com/polkiloo/payouts/internal/rail"
	"github.com/polkiloo/payouts/internal/risk"
)

// Plugins resolves rail identifiers.
type Plugins interface {
	Resolve(r model.Rail) (rail.Plugin, error)
	Rails() []model.Rail
}

// RiskChecker rates a withdrawal before funds move.
type RiskChecker interface {
	Check(ctx context.Context, in risk.Input) model.RiskDecision
}

// Deps groups the collaborators shared by the withdrawal use cases.
type Deps struct {
	fx.In

	Config      *config.Config
	Tx          repository.Transactor
	Users       repository.UserRepository
	Withdrawals repository.WithdrawalRepository
	Ledger      *Ledger
	Plugins     Plugins
	Notifier    notify.Notifier
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// workflow carries the state changes every withdrawal path needs.
type workflow struct {
	cfg         *config.Config
	tx          repository.Transactor
	users       repository.UserRepository
	withdrawals repository.WithdrawalRepository
	ledger      *Ledger
	plugins     Plugins
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func newWorkflow(d Deps, name string) *workflow {
	return &workflow{
		cfg:         d.Config,
		tx:          d.Tx,
		users:       d.Users,
		withdrawals: d.Withdrawals,
		ledger:      d.Ledger,
		plugins:     d.Plugins,
		notifier:    d.Notifier,
		metrics:     d.Metrics,
		logger:      d.Logger.Named(name),
		now:         time.Now,
	}
}

type statusEvent struct {
	WithdrawalID  uuid.UUID              `json:"withdrawalId"`
	UserID        int64                  `json:"userId"`
	Plugin        model.Rail             `json:"plugin"`
	Network       model.Network          `json:"network"`
	Amount        decimal.Decimal        `json:"amount"`
	Status        model.WithdrawalStatus `json:"status"`
	Reason        *model.ReasonCode      `json:"reason,omitempty"`
	TransactionID *string                `json:"transactionId,omitempty"`
	Attempts      int                    `json:"attempts"`
}

// recordStatus appends the status change of w to the outbox of uow.
func (f *workflow) recordStatus(ctx context.Context, uow repository.UnitOfWork, w *model.Withdrawal) error {
	payload, err := json.Marshal(statusEvent{
		WithdrawalID:  w.ID,
		UserID:        w.UserID,
		Plugin:        w.Plugin,
		Network:       w.Network,
		Amount:        w.TotalValue,
		Status:        w.Status,
		Reason:        w.Reason,
		TransactionID: w.TransactionID,
		Attempts:      w.Attempts,
	})
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	return uow.Outbox().Append(ctx, model.OutboxEvent{
		ID:          uuid.New(),
		Aggregate:   model.AggregateWithdrawal,
		AggregateID: w.ID.String(),
		Type:        model.EventWithdrawalStatusChanged,
		Payload:     payload,
		CreatedAt:   f.now(),
	})
}

// moveIn applies t inside uow and records the event.
func (f *workflow) moveIn(ctx context.Context, uow repository.UnitOfWork, id uuid.UUID, t model.Transition) (*model.Withdrawal, error) {
	w, err := uow.Withdrawals().Transition(ctx, id, t)
	if err != nil {
		return nil, fmt.Errorf("transition %s to %s: %w", id, t.To, err)
	}
	if err := f.recordStatus(ctx, uow, w); err != nil {
		return nil, err
	}
	return w, nil
}

// move applies t in its own unit of work.
func (f *workflow) move(ctx context.Context, id uuid.UUID, t model.Transition) (*model.Withdrawal, error) {
	var out *model.Withdrawal
	err := f.tx.WithinUnitOfWork(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		out, err = f.moveIn(ctx, uow, id, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	f.metrics.Withdrawal(string(out.Plugin), string(out.Status))
	return out, nil
}

// failAndRefund marks w FAILED with reason and credits the held amount back
// in one unit of work.
func (f *workflow) failAndRefund(ctx context.Context, w *model.Withdrawal, from model.WithdrawalStatus, reason model.ReasonCode) (*model.Withdrawal, error) {
	req := w.Request()
	var out *model.Withdrawal
	err := f.tx.WithinUnitOfWork(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		out, err = f.moveIn(ctx, uow, w.ID, model.Transition{
			From:   []model.WithdrawalStatus{from},
			To:     model.StatusFailed,
			Reason: model.ReasonPtr(reason),
		})
		if err != nil {
			return err
		}
		_, err = f.ledger.Credit(ctx, uow, w.UserID, w.TotalValue, model.TxCancelledWithdrawal,
			map[string]any{"withdrawalId": w.ID.String(), "reason": string(reason)},
			LedgerOptions{BalanceType: req.BalanceType},
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	f.metrics.Withdrawal(string(out.Plugin), string(out.Status))
	return out, nil
}

// notifyUser sends a status message; failures are only logged.
func (f *workflow) notifyUser(ctx context.Context, w *model.Withdrawal) {
	n := model.Notification{UserID: w.UserID, WithdrawalID: w.ID, Status: w.Status, Reason: w.Reason}
	if err := f.notifier.Notify(ctx, n); err != nil {
		f.logger.Warn("notify user failed", withdrawalFields(w, zap.Error(err))...)
	}
}

func withdrawalFields(w *model.Withdrawal, extra ...zap.Field) []zap.Field {
	fields := []zap.Field{
		zap.String("withdrawal_id", w.ID.String()),
		zap.Int64("user_id", w.UserID),
		zap.String("rail", string(w.Plugin)),
		zap.String("amount", w.TotalValue.String()),
		zap.String("status", string(w.Status)),
	}
	return append(fields, extra...)
}
