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
)

const defaultReviewLimit = 100

// Review resolves withdrawals held by the risk gate.
type Review struct {
	*workflow
}

// NewReview constructs Review.
func NewReview(d Deps) *Review {
	return &Review{workflow: newWorkflow(d, "review")}
}

// ListFlagged returns withdrawals awaiting review, oldest first.
func (r *Review) ListFlagged(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	if limit <= 0 {
		limit = defaultReviewLimit
	}
	return r.withdrawals.ListByStatus(ctx, model.StatusFlagged, limit)
}

// Approve releases a flagged withdrawal to its rail.
func (r *Review) Approve(ctx context.Context, id uuid.UUID, note string) (*model.SendResult, error) {
	w, err := r.flagged(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err := r.users.GetByID(ctx, w.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	plugin, err := r.plugins.Resolve(w.Plugin)
	if err != nil {
		return nil, err
	}

	var approved *model.Withdrawal
	err = r.tx.WithinUnitOfWork(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		approved, err = r.moveIn(ctx, uow, id, model.Transition{
			From: []model.WithdrawalStatus{model.StatusFlagged},
			To:   model.StatusApproved,
		})
		if err != nil {
			return err
		}
		return r.note(ctx, uow, approved, "approved", note)
	})
	if err != nil {
		return nil, r.notFlagged(err)
	}
	r.metrics.Withdrawal(string(approved.Plugin), string(approved.Status))
	r.logger.Info("flagged withdrawal approved", withdrawalFields(approved)...)

	return r.send(ctx, user, plugin, approved.Request(), approved, model.StatusApproved)
}

// Reject cancels a flagged withdrawal and returns the held funds.
func (r *Review) Reject(ctx context.Context, id uuid.UUID, note string) (*model.Withdrawal, error) {
	w, err := r.flagged(ctx, id)
	if err != nil {
		return nil, err
	}

	var cancelled *model.Withdrawal
	err = r.tx.WithinUnitOfWork(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		rejected, err := r.moveIn(ctx, uow, id, model.Transition{
			From: []model.WithdrawalStatus{model.StatusFlagged},
			To:   model.StatusRejected,
		})
		if err != nil {
			return err
		}
		if err := r.note(ctx, uow, rejected, "rejected", note); err != nil {
			return err
		}
		_, err = r.ledger.Credit(ctx, uow, w.UserID, w.TotalValue, model.TxCancelledWithdrawal,
			map[string]any{"withdrawalId": w.ID.String(), "reason": "rejected"},
			LedgerOptions{BalanceType: w.Request().BalanceType},
		)
		if err != nil {
			return err
		}
		cancelled, err = r.moveIn(ctx, uow, id, model.Transition{
			From: []model.WithdrawalStatus{model.StatusRejected},
			To:   model.StatusCancelled,
		})
		return err
	})
	if err != nil {
		return nil, r.notFlagged(err)
	}

	r.metrics.Withdrawal(string(cancelled.Plugin), string(cancelled.Status))
	r.logger.Info("flagged withdrawal rejected", withdrawalFields(cancelled)...)
	r.notifyUser(ctx, cancelled)
	return cancelled, nil
}

func (r *Review) flagged(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	w, err := r.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != model.StatusFlagged {
		return nil, domainErrors.NewValidationError(domainErrors.CodeNotFlagged, "status", string(w.Status))
	}
	return w, nil
}

func (r *Review) note(ctx context.Context, uow repository.UnitOfWork, w *model.Withdrawal, verb, note string) error {
	text := fmt.Sprintf("withdrawal %s %s", w.ID, verb)
	if note != "" {
		text += ": " + note
	}
	if err := uow.Users().AddNote(ctx, w.UserID, text); err != nil {
		return fmt.Errorf("add note: %w", err)
	}
	return nil
}

// notFlagged maps a lost review race onto the user-facing code.
func (r *Review) notFlagged(err error) error {
	if errors.Is(err, domainErrors.ErrStaleTransition) {
		r.logger.Warn("review lost race", zap.Error(err))
		return domainErrors.NewValidationError(domainErrors.CodeNotFlagged)
	}
	return err
}
