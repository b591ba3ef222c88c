package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/domain/repository"
)

// Settlement drives PENDING withdrawals through the rails' background step.
type Settlement struct {
	*workflow
}

// NewSettlement constructs Settlement.
func NewSettlement(d Deps) *Settlement {
	return &Settlement{workflow: newWorkflow(d, "settlement")}
}

// Pending lists withdrawals of registered rails that are waiting for settlement.
func (s *Settlement) Pending(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	return s.withdrawals.ListPending(ctx, s.plugins.Rails(), limit)
}

// ResetStale returns records stuck in PROCESSING or REPROCESSING to PENDING.
func (s *Settlement) ResetStale(ctx context.Context) (int, error) {
	ids, err := s.withdrawals.ResetStale(ctx, s.cfg.Retry.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("reset stale withdrawals: %w", err)
	}
	for _, id := range ids {
		s.logger.Warn("stale withdrawal reset to pending", zap.String("withdrawal_id", id.String()))
	}
	return len(ids), nil
}

// Process claims w and runs one background send. A record claimed by another
// processor is skipped without error.
func (s *Settlement) Process(ctx context.Context, w model.Withdrawal) error {
	claimed, ok, err := s.withdrawals.Claim(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("claim withdrawal %s: %w", w.ID, err)
	}
	if !ok {
		s.logger.Debug("withdrawal already claimed", zap.String("withdrawal_id", w.ID.String()))
		return nil
	}
	s.metrics.Withdrawal(string(claimed.Plugin), string(claimed.Status))
	rail := string(claimed.Plugin)

	txID, sendErr := s.sendBackground(ctx, claimed)
	switch {
	case sendErr == nil && txID == "":
		s.metrics.WorkerAttempt(rail, "skipped")
		s.logger.Warn("background send skipped", withdrawalFields(claimed, zap.String("network", string(claimed.Network)))...)
		_, err := s.recordFailure(ctx, claimed)
		return err

	case sendErr == nil:
		done, err := s.move(ctx, claimed.ID, model.Transition{
			From:          []model.WithdrawalStatus{model.StatusProcessing},
			To:            model.StatusCompleted,
			TransactionID: txID,
		})
		if err != nil {
			s.logger.Error("persist settlement failed", withdrawalFields(claimed, zap.String("external_id", txID), zap.Error(err))...)
			s.metrics.PostSendPersistFailure()
			return err
		}
		s.metrics.WorkerAttempt(rail, "completed")
		s.logger.Info("withdrawal settled", withdrawalFields(done, zap.String("external_id", txID))...)
		s.notifyUser(ctx, done)
		return nil

	case domainErrors.IsPermanent(sendErr):
		s.metrics.WorkerAttempt(rail, "failed")
		failed, err := s.failAndRefund(ctx, claimed, model.StatusProcessing, domainErrors.FailureReason(sendErr))
		if err != nil {
			s.logger.Error("compensating credit failed", withdrawalFields(claimed, zap.Error(err))...)
			return errors.Join(sendErr, err)
		}
		s.notifyUser(ctx, failed)
		return sendErr
	}

	s.metrics.WorkerAttempt(rail, "retry")
	updated, err := s.recordFailure(ctx, claimed)
	if err != nil {
		return errors.Join(sendErr, err)
	}
	if updated.Status == model.StatusReprocessing {
		s.logger.Warn("withdrawal moved to reprocessing",
			withdrawalFields(updated, zap.Int("attempts", updated.Attempts), zap.Error(sendErr))...)
	}
	return sendErr
}

// recordFailure counts one unsuccessful attempt and releases the claim.
func (s *Settlement) recordFailure(ctx context.Context, claimed *model.Withdrawal) (*model.Withdrawal, error) {
	var updated *model.Withdrawal
	err := s.tx.WithinUnitOfWork(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		updated, err = uow.Withdrawals().RecordFailure(ctx, claimed.ID, claimed.Attempts, s.cfg.Retry.Limit)
		if err != nil {
			return err
		}
		return s.recordStatus(ctx, uow, updated)
	})
	if err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	s.metrics.Withdrawal(string(updated.Plugin), string(updated.Status))
	return updated, nil
}

func (s *Settlement) sendBackground(ctx context.Context, w *model.Withdrawal) (string, error) {
	plugin, err := s.plugins.Resolve(w.Plugin)
	if err != nil {
		return "", err
	}
	user, err := s.users.GetByID(ctx, w.UserID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	return plugin.SendBackground(ctx, user, w, w.Network)
}
