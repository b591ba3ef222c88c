package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

var withdrawalColumnNames = []string{
	"id", "plugin", "network", "user_id", "currency", "total_value", "status", "attempts",
	"transaction_id", "reason", "request_fields", "created_at", "updated_at",
}

func sampleWithdrawal() *model.Withdrawal {
	req := model.WithdrawalRequest{
		UserID:          7,
		Rail:            model.RailBitcoin,
		Network:         model.NetworkBitcoin,
		Currency:        "BTC",
		Amount:          decimal.RequireFromString("0.5"),
		BalanceType:     model.BalanceCrypto,
		TransactionType: model.TxWithdrawal,
		Address:         "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
	}
	return &model.Withdrawal{
		ID:            uuid.New(),
		Plugin:        req.Rail,
		Network:       req.Network,
		UserID:        req.UserID,
		Currency:      req.Currency,
		TotalValue:    req.Amount,
		RequestFields: req.Fields(),
	}
}

func withdrawalRows(t *testing.T, w *model.Withdrawal, status model.WithdrawalStatus, attempts int) *pgxmockv3.Rows {
	t.Helper()
	fields, err := json.Marshal(w.RequestFields)
	if err != nil {
		t.Fatalf("marshal fields: %v", err)
	}
	now := time.Now()
	return pgxmockv3.NewRows(withdrawalColumnNames).AddRow(
		w.ID, w.Plugin, w.Network, w.UserID, w.Currency, w.TotalValue, status, attempts,
		nil, nil, fields, now, now,
	)
}

func TestWithdrawalCreate(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{q: storage.pool}
	ctx := context.Background()

	w := sampleWithdrawal()
	w.Status = model.StatusPending
	w.Attempts = 3
	now := time.Now()
	mock.ExpectQuery("INSERT INTO withdrawals").
		WithArgs(w.ID, "bitcoin", "BTC", int64(7), "BTC", w.TotalValue, "INITIATED", pgxmockv3.AnyArg()).
		WillReturnRows(pgxmockv3.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	if err := repo.Create(ctx, w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Status != model.StatusInitiated || w.Attempts != 0 || !w.CreatedAt.Equal(now) {
		t.Fatalf("expected fresh INITIATED record, got %+v", w)
	}

	bad := sampleWithdrawal()
	bad.RequestFields.Fiat = &model.FiatFields{AccountID: "x"}
	if err := repo.Create(ctx, bad); err == nil {
		t.Fatal("expected mismatched fields to be rejected")
	}

	other := sampleWithdrawal()
	mock.ExpectQuery("INSERT INTO withdrawals").WillReturnError(errors.New("insert"))
	if err := repo.Create(ctx, other); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalGetByID(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{q: storage.pool}
	ctx := context.Background()

	w := sampleWithdrawal()
	mock.ExpectQuery("SELECT id, plugin, network").WithArgs(w.ID).WillReturnRows(withdrawalRows(t, w, model.StatusPending, 1))
	got, err := repo.GetByID(ctx, w.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.StatusPending || got.Attempts != 1 || got.TransactionID != nil {
		t.Fatalf("unexpected withdrawal %+v", got)
	}
	if got.Request().Address != w.RequestFields.Crypto.Address {
		t.Fatalf("request fields not decoded: %+v", got.RequestFields)
	}

	mock.ExpectQuery("SELECT id, plugin, network").WithArgs(w.ID).WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByID(ctx, w.ID); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	now := time.Now()
	mock.ExpectQuery("SELECT id, plugin, network").WithArgs(w.ID).WillReturnRows(
		pgxmockv3.NewRows(withdrawalColumnNames).AddRow(
			w.ID, w.Plugin, w.Network, w.UserID, w.Currency, w.TotalValue, model.StatusPending, 0,
			nil, nil, []byte(`{not json`), now, now,
		))
	if _, err := repo.GetByID(ctx, w.ID); err == nil {
		t.Fatal("expected decode error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalTransition(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{q: storage.pool}
	ctx := context.Background()
	w := sampleWithdrawal()

	t.Run("forbidden transition", func(t *testing.T) {
		_, err := repo.Transition(ctx, w.ID, model.Transition{
			From: []model.WithdrawalStatus{model.StatusCompleted},
			To:   model.StatusPending,
		})
		if !errors.Is(err, domainErrors.ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})

	t.Run("applied", func(t *testing.T) {
		mock.ExpectQuery("UPDATE withdrawals").
			WithArgs(w.ID, "FAILED", pgxmockv3.AnyArg(), pgxmockv3.AnyArg(), []string{"PROCESSING"}).
			WillReturnRows(withdrawalRows(t, w, model.StatusFailed, 2))
		got, err := repo.Transition(ctx, w.ID, model.Transition{
			From:   []model.WithdrawalStatus{model.StatusProcessing},
			To:     model.StatusFailed,
			Reason: model.ReasonPtr(model.ReasonTransactionFailed),
		})
		if err != nil || got.Status != model.StatusFailed {
			t.Fatalf("unexpected result %+v err=%v", got, err)
		}
	})

	t.Run("stale", func(t *testing.T) {
		mock.ExpectQuery("UPDATE withdrawals").
			WithArgs(w.ID, "COMPLETED", pgxmockv3.AnyArg(), pgxmockv3.AnyArg(), []string{"INITIATED", "APPROVED"}).
			WillReturnError(pgx.ErrNoRows)
		_, err := repo.Transition(ctx, w.ID, model.Transition{
			From:          []model.WithdrawalStatus{model.StatusInitiated, model.StatusApproved},
			To:            model.StatusCompleted,
			TransactionID: "tx-1",
		})
		if !errors.Is(err, domainErrors.ErrStaleTransition) {
			t.Fatalf("expected stale transition, got %v", err)
		}
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery("UPDATE withdrawals").WillReturnError(errors.New("db"))
		_, err := repo.Transition(ctx, w.ID, model.Transition{
			From: []model.WithdrawalStatus{model.StatusInitiated},
			To:   model.StatusPending,
		})
		if err == nil || errors.Is(err, domainErrors.ErrStaleTransition) {
			t.Fatalf("expected raw error, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalClaimAndFailure(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{q: storage.pool}
	ctx := context.Background()
	w := sampleWithdrawal()

	mock.ExpectQuery("UPDATE withdrawals SET status").WithArgs(w.ID, "PROCESSING", "PENDING").
		WillReturnRows(withdrawalRows(t, w, model.StatusProcessing, 0))
	got, ok, err := repo.Claim(ctx, w.ID)
	if err != nil || !ok || got.Status != model.StatusProcessing {
		t.Fatalf("unexpected claim %+v ok=%v err=%v", got, ok, err)
	}

	mock.ExpectQuery("UPDATE withdrawals SET status").WithArgs(w.ID, "PROCESSING", "PENDING").
		WillReturnError(pgx.ErrNoRows)
	if _, ok, err := repo.Claim(ctx, w.ID); ok || err != nil {
		t.Fatalf("expected lost race, ok=%v err=%v", ok, err)
	}

	mock.ExpectQuery("UPDATE withdrawals SET status").WithArgs(w.ID, "PROCESSING", "PENDING").
		WillReturnError(errors.New("db"))
	if _, _, err := repo.Claim(ctx, w.ID); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("UPDATE withdrawals SET status").WithArgs(w.ID, "PENDING", 2, "PROCESSING", 1).
		WillReturnRows(withdrawalRows(t, w, model.StatusPending, 2))
	got, err = repo.RecordFailure(ctx, w.ID, 1, 5)
	if err != nil || got.Status != model.StatusPending || got.Attempts != 2 {
		t.Fatalf("unexpected failure record %+v err=%v", got, err)
	}

	mock.ExpectQuery("UPDATE withdrawals SET status").WithArgs(w.ID, "REPROCESSING", 5, "PROCESSING", 4).
		WillReturnRows(withdrawalRows(t, w, model.StatusReprocessing, 5))
	got, err = repo.RecordFailure(ctx, w.ID, 4, 5)
	if err != nil || got.Status != model.StatusReprocessing {
		t.Fatalf("expected reprocessing, got %+v err=%v", got, err)
	}

	mock.ExpectQuery("UPDATE withdrawals SET status").WithArgs(w.ID, "PENDING", 3, "PROCESSING", 2).
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.RecordFailure(ctx, w.ID, 2, 5); !errors.Is(err, domainErrors.ErrStaleTransition) {
		t.Fatalf("expected stale, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestWithdrawalLists(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{q: storage.pool}
	ctx := context.Background()
	w := sampleWithdrawal()

	mock.ExpectQuery("SELECT id, plugin, network").WithArgs("PENDING", []string{"bitcoin", "fiat"}, 10).
		WillReturnRows(withdrawalRows(t, w, model.StatusPending, 0))
	list, err := repo.ListPending(ctx, []model.Rail{model.RailBitcoin, model.RailFiat}, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %v err=%v", list, err)
	}

	mock.ExpectQuery("SELECT id, plugin, network").WithArgs("PENDING", []string{"bitcoin"}, 10).
		WillReturnError(errors.New("query"))
	if _, err := repo.ListPending(ctx, []model.Rail{model.RailBitcoin}, 10); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("SELECT id, plugin, network").WithArgs("FLAGGED", 50).
		WillReturnRows(withdrawalRows(t, w, model.StatusFlagged, 0).RowError(0, errors.New("row")))
	if _, err := repo.ListByStatus(ctx, model.StatusFlagged, 50); err == nil || err.Error() != "row" {
		t.Fatalf("expected row error, got %v", err)
	}

	mock.ExpectQuery("SELECT id, plugin, network").WithArgs("FLAGGED", 50).
		WillReturnRows(pgxmockv3.NewRows(withdrawalColumnNames))
	list, err = repo.ListByStatus(ctx, model.StatusFlagged, 50)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v err=%v", list, err)
	}

	mock.ExpectQuery("SELECT id, plugin, network").WithArgs("FLAGGED", 50).WillReturnError(errors.New("query"))
	if _, err := repo.ListByStatus(ctx, model.StatusFlagged, 50); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}

	rowsRepo := &withdrawalRepository{q: &rowsErrorPool{rows: &errorRows{err: errors.New("rows err")}}}
	if _, err := rowsRepo.ListByStatus(ctx, model.StatusFlagged, 1); err == nil {
		t.Fatal("expected rows error")
	}
}

func TestWithdrawalResetStaleAndSum(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &withdrawalRepository{q: storage.pool}
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	mock.ExpectQuery("UPDATE withdrawals SET status").
		WithArgs("PENDING", []string{"PROCESSING", "REPROCESSING"}, float64(600)).
		WillReturnRows(pgxmockv3.NewRows([]string{"id"}).AddRow(first).AddRow(second))
	ids, err := repo.ResetStale(ctx, 10*time.Minute)
	if err != nil || len(ids) != 2 || ids[0] != first {
		t.Fatalf("unexpected ids %v err=%v", ids, err)
	}

	mock.ExpectQuery("UPDATE withdrawals SET status").WillReturnError(errors.New("db"))
	if _, err := repo.ResetStale(ctx, time.Minute); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("UPDATE withdrawals SET status").
		WithArgs("PENDING", []string{"PROCESSING", "REPROCESSING"}, float64(60)).
		WillReturnRows(pgxmockv3.NewRows([]string{"id"}).AddRow("bad"))
	if _, err := repo.ResetStale(ctx, time.Minute); err == nil {
		t.Fatal("expected scan error")
	}

	since := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT COALESCE").WithArgs(int64(7), since, []string{"FAILED", "DECLINED", "CANCELLED"}).
		WillReturnRows(pgxmockv3.NewRows([]string{"sum"}).AddRow(decimal.NewFromInt(80)))
	if got, err := repo.SumSince(ctx, 7, since); err != nil || !got.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("unexpected sum %s err=%v", got, err)
	}

	mock.ExpectQuery("SELECT COALESCE").WillReturnError(errors.New("db"))
	if _, err := repo.SumSince(ctx, 7, since); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
