package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/domain/repository"
	"github.com/polkiloo/payouts/internal/notify"
	"github.com/polkiloo/payouts/internal/rail"
	"github.com/polkiloo/payouts/internal/risk"
)

// Orchestrator runs a withdrawal from submission to the rail's send step.
type Orchestrator struct {
	*workflow
	risk    RiskChecker
	alerter notify.Alerter
}

// NewOrchestrator constructs Orchestrator.
func NewOrchestrator(d Deps, checker RiskChecker, alerter notify.Alerter) *Orchestrator {
	return &Orchestrator{workflow: newWorkflow(d, "orchestrator"), risk: checker, alerter: alerter}
}

// Withdraw pays out from the balance that matches the rail.
func (o *Orchestrator) Withdraw(ctx context.Context, userID int64, raw model.RawRequest, session string) (*model.SendResult, error) {
	req, err := Normalize(userID, raw)
	if err != nil {
		return nil, err
	}
	user, plugin, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := o.checkEssentials(ctx, user, req); err != nil {
		return nil, err
	}
	if req, err = plugin.Validate(ctx, user, req, req.Network); err != nil {
		return nil, err
	}
	return o.execute(ctx, user, plugin, req, session)
}

// Transfer moves cash balance out through a crypto rail.
func (o *Orchestrator) Transfer(ctx context.Context, userID int64, raw model.RawRequest, session string) (*model.SendResult, error) {
	req, err := Normalize(userID, raw)
	if err != nil {
		return nil, err
	}
	if !req.Rail.IsCrypto() {
		return nil, domainErrors.NewValidationError(domainErrors.CodeTransferRail, "plugin", string(req.Rail))
	}
	user, plugin, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, domainErrors.NewValidationError(domainErrors.CodeTwoFactorRequired)
	}
	if user.KYCLevel < o.cfg.Rails.TransferMinKYC {
		return nil, domainErrors.NewValidationError(domainErrors.CodeKYCLevelTooLow, "required", o.cfg.Rails.TransferMinKYC)
	}

	req.BalanceType = model.BalanceCash
	req.TransactionType = model.TxCashToCryptoTransfer
	if err := o.checkEssentials(ctx, user, req); err != nil {
		return nil, err
	}
	if req, err = plugin.Validate(ctx, user, req, req.Network); err != nil {
		return nil, err
	}
	return o.execute(ctx, user, plugin, req, session)
}

func (o *Orchestrator) prepare(ctx context.Context, req model.WithdrawalRequest) (*model.User, rail.Plugin, error) {
	plugin, err := o.plugins.Resolve(req.Rail)
	if err != nil {
		return nil, nil, err
	}
	user, err := o.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	return user, plugin, nil
}

func (o *Orchestrator) execute(ctx context.Context, user *model.User, plugin rail.Plugin, req model.WithdrawalRequest, session string) (*model.SendResult, error) {
	w := &model.Withdrawal{
		ID:            uuid.New(),
		Plugin:        req.Rail,
		Network:       req.Network,
		UserID:        user.ID,
		Currency:      req.Currency,
		TotalValue:    req.Amount,
		RequestFields: req.Fields(),
	}
	err := o.tx.WithinUnitOfWork(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.Withdrawals().Create(ctx, w); err != nil {
			return fmt.Errorf("create withdrawal: %w", err)
		}
		return o.recordStatus(ctx, uow, w)
	})
	if err != nil {
		return nil, err
	}
	o.metrics.Withdrawal(string(w.Plugin), string(w.Status))

	decision := o.risk.Check(ctx, risk.Input{User: user, Request: req, Session: session})
	if decision.Outcome == model.RiskDeclined {
		return nil, o.decline(ctx, w, decision.Reason)
	}

	flagged := decision.Outcome == model.RiskFlagged
	var held *model.Withdrawal
	err = o.tx.WithinUnitOfWork(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		_, err := o.ledger.Debit(ctx, uow, user.ID, req.Amount, req.TransactionType,
			map[string]any{"withdrawalId": w.ID.String(), "plugin": string(req.Rail)},
			LedgerOptions{BalanceType: req.BalanceType},
		)
		if err != nil || !flagged {
			return err
		}
		held, err = o.moveIn(ctx, uow, w.ID, model.Transition{
			From: []model.WithdrawalStatus{model.StatusInitiated},
			To:   model.StatusFlagged,
		})
		return err
	})
	if err != nil {
		o.logger.Warn("debit failed", withdrawalFields(w, zap.Error(err))...)
		if failed, ferr := o.move(ctx, w.ID, model.Transition{
			From:   []model.WithdrawalStatus{model.StatusInitiated},
			To:     model.StatusFailed,
			Reason: model.ReasonPtr(model.ReasonDeductBalance),
		}); ferr != nil {
			o.logger.Error("mark withdrawal failed", withdrawalFields(w, zap.Error(ferr))...)
		} else {
			o.notifyUser(ctx, failed)
		}
		return nil, err
	}

	if flagged {
		o.metrics.Withdrawal(string(held.Plugin), string(held.Status))
		o.alertFlagged(ctx, held, decision.Message)
		o.notifyUser(ctx, held)
		return &model.SendResult{WithdrawalID: w.ID, Status: model.StatusFlagged}, nil
	}

	return o.send(ctx, user, plugin, req, w, model.StatusInitiated)
}

func (o *Orchestrator) decline(ctx context.Context, w *model.Withdrawal, reason model.ReasonCode) error {
	failed, err := o.move(ctx, w.ID, model.Transition{
		From:   []model.WithdrawalStatus{model.StatusInitiated},
		To:     model.StatusFailed,
		Reason: model.ReasonPtr(reason),
	})
	if err != nil {
		o.logger.Error("mark declined withdrawal failed", withdrawalFields(w, zap.Error(err))...)
		return err
	}
	o.logger.Info("withdrawal declined", withdrawalFields(failed, zap.String("reason", string(reason)))...)
	o.notifyUser(ctx, failed)
	return &domainErrors.RiskDeclinedError{Reason: reason}
}

func (o *Orchestrator) alertFlagged(ctx context.Context, w *model.Withdrawal, message string) {
	alert := model.Alert{
		Subject: fmt.Sprintf("Withdrawal %s flagged for review", w.ID),
		Body:    message,
		Fields: map[string]string{
			"withdrawal_id": w.ID.String(),
			"user_id":       fmt.Sprintf("%d", w.UserID),
			"rail":          string(w.Plugin),
			"amount":        w.TotalValue.String(),
			"currency":      w.Currency,
		},
	}
	if err := o.alerter.Alert(ctx, alert); err != nil {
		o.logger.Warn("flagged withdrawal alert failed", withdrawalFields(w, zap.Error(err))...)
	}
}

// send runs the rail's synchronous step for a debited withdrawal currently
// in status from. A failed send is compensated before the error returns.
func (f *workflow) send(ctx context.Context, user *model.User, plugin rail.Plugin, req model.WithdrawalRequest, w *model.Withdrawal, from model.WithdrawalStatus) (*model.SendResult, error) {
	res, err := plugin.Send(ctx, user, req, w)
	if err != nil {
		reason := domainErrors.FailureReason(err)
		f.logger.Error("rail send failed", withdrawalFields(w, zap.String("reason", string(reason)), zap.Error(err))...)
		failed, ferr := f.failAndRefund(ctx, w, from, reason)
		if ferr != nil {
			f.logger.Error("compensating credit failed", withdrawalFields(w, zap.Error(ferr))...)
			return nil, errors.Join(fmt.Errorf("send withdrawal: %w", err), ferr)
		}
		f.notifyUser(ctx, failed)
		return nil, fmt.Errorf("send withdrawal: %w", err)
	}

	res.WithdrawalID = w.ID
	updated, err := f.move(ctx, w.ID, model.Transition{
		From:          []model.WithdrawalStatus{from},
		To:            res.Status,
		TransactionID: res.ExternalID,
	})
	if err != nil {
		f.logger.Error("persist send result failed", withdrawalFields(w,
			zap.String("result_status", string(res.Status)),
			zap.String("external_id", res.ExternalID),
			zap.Error(err),
		)...)
		f.metrics.PostSendPersistFailure()
		if res.Status == model.StatusPending && res.ExternalID == "" {
			return nil, f.abandonQueued(ctx, w, from, err)
		}
	} else {
		w = updated
	}

	if err := f.users.AddLifetimeWithdrawn(ctx, w.UserID, w.TotalValue); err != nil {
		f.logger.Warn("update lifetime withdrawn failed", withdrawalFields(w, zap.Error(err))...)
	}
	f.logger.Info("withdrawal sent", withdrawalFields(w, zap.String("external_id", res.ExternalID))...)
	return &res, nil
}

// abandonQueued fails and refunds a withdrawal the rail queued for settlement
// when its PENDING status could not be stored.
func (f *workflow) abandonQueued(ctx context.Context, w *model.Withdrawal, from model.WithdrawalStatus, cause error) error {
	failed, err := f.failAndRefund(ctx, w, from, model.ReasonPluginUnknownFailure)
	if err != nil {
		f.logger.Error("compensating credit failed", withdrawalFields(w, zap.Error(err))...)
		return errors.Join(fmt.Errorf("queue withdrawal: %w", cause), err)
	}
	f.notifyUser(ctx, failed)
	return fmt.Errorf("queue withdrawal: %w", cause)
}
