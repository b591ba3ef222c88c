package postgres

import (
	"context"
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

func TestLedgerAdjustDebit(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &ledgerRepository{q: storage.pool}
	ctx := context.Background()
	delta := decimal.NewFromInt(-10)

	mock.ExpectQuery("UPDATE balances SET amount").WithArgs(int64(1), "crypto", delta, false).
		WillReturnRows(pgxmockv3.NewRows([]string{"amount"}).AddRow(decimal.NewFromInt(90)))
	got, err := repo.Adjust(ctx, 1, model.BalanceCrypto, delta, false)
	if err != nil || !got.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("unexpected result %s err=%v", got, err)
	}

	mock.ExpectQuery("UPDATE balances SET amount").WithArgs(int64(1), "crypto", delta, false).
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Adjust(ctx, 1, model.BalanceCrypto, delta, false); !errors.Is(err, domainErrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	mock.ExpectQuery("UPDATE balances SET amount").WithArgs(int64(1), "cash", delta, true).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO balances").WithArgs(int64(1), "cash", delta).
		WillReturnRows(pgxmockv3.NewRows([]string{"amount"}).AddRow(delta))
	got, err = repo.Adjust(ctx, 1, model.BalanceCash, delta, true)
	if err != nil || !got.Equal(delta) {
		t.Fatalf("expected negative balance row, got %s err=%v", got, err)
	}

	mock.ExpectQuery("UPDATE balances SET amount").WithArgs(int64(1), "cash", delta, false).
		WillReturnError(errors.New("db"))
	if _, err := repo.Adjust(ctx, 1, model.BalanceCash, delta, false); err == nil || errors.Is(err, domainErrors.ErrInsufficientBalance) {
		t.Fatalf("expected raw error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestLedgerAdjustCredit(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &ledgerRepository{q: storage.pool}
	delta := decimal.NewFromInt(15)

	mock.ExpectQuery("INSERT INTO balances").WithArgs(int64(1), "cash", delta).
		WillReturnRows(pgxmockv3.NewRows([]string{"amount"}).AddRow(decimal.NewFromInt(115)))
	got, err := repo.Adjust(context.Background(), 1, model.BalanceCash, delta, false)
	if err != nil || !got.Equal(decimal.NewFromInt(115)) {
		t.Fatalf("unexpected result %s err=%v", got, err)
	}

	mock.ExpectQuery("INSERT INTO balances").WithArgs(int64(1), "cash", delta).WillReturnError(errors.New("db"))
	if _, err := repo.Adjust(context.Background(), 1, model.BalanceCash, delta, false); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func ledgerEntry() *model.LedgerTransaction {
	return &model.LedgerTransaction{
		ID:               uuid.New(),
		UserID:           1,
		Amount:           decimal.NewFromInt(-10),
		TransactionType:  model.TxWithdrawal,
		BalanceType:      model.BalanceCrypto,
		ResultantBalance: decimal.NewFromInt(90),
		Meta:             map[string]any{"plugin": "bitcoin"},
		CreatedAt:        time.Now(),
	}
}

func expectLedgerInsert(mock pgxmockv3.PgxPoolIface, e *model.LedgerTransaction) *pgxmockv3.ExpectedExec {
	return mock.ExpectExec("INSERT INTO ledger_transactions").WithArgs(
		e.ID, e.UserID, e.Amount, "withdrawal", "crypto", e.ResultantBalance, []byte(`{"plugin":"bitcoin"}`), e.CreatedAt,
	)
}

func TestLedgerAppend(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	ctx := context.Background()
	entry := ledgerEntry()

	t.Run("outside transaction", func(t *testing.T) {
		repo := &ledgerRepository{q: storage.pool}
		expectLedgerInsert(mock, entry).WillReturnResult(pgxmockv3.NewResult("INSERT", 1))
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("savepoint released", func(t *testing.T) {
		repo := &ledgerRepository{q: storage.pool, inTx: true}
		mock.ExpectExec("SAVEPOINT ledger_audit").WillReturnResult(pgxmockv3.NewResult("SAVEPOINT", 0))
		expectLedgerInsert(mock, entry).WillReturnResult(pgxmockv3.NewResult("INSERT", 1))
		mock.ExpectExec("RELEASE SAVEPOINT ledger_audit").WillReturnResult(pgxmockv3.NewResult("RELEASE", 0))
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("insert failure rolls back to savepoint", func(t *testing.T) {
		repo := &ledgerRepository{q: storage.pool, inTx: true}
		mock.ExpectExec("SAVEPOINT ledger_audit").WillReturnResult(pgxmockv3.NewResult("SAVEPOINT", 0))
		expectLedgerInsert(mock, entry).WillReturnError(errors.New("audit"))
		mock.ExpectExec("ROLLBACK TO SAVEPOINT ledger_audit").WillReturnResult(pgxmockv3.NewResult("ROLLBACK", 0))
		if err := repo.Append(ctx, entry); err == nil || err.Error() != "audit" {
			t.Fatalf("expected audit error, got %v", err)
		}
	})

	t.Run("savepoint failure", func(t *testing.T) {
		repo := &ledgerRepository{q: storage.pool, inTx: true}
		mock.ExpectExec("SAVEPOINT ledger_audit").WillReturnError(errors.New("savepoint"))
		if err := repo.Append(ctx, entry); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unencodable meta", func(t *testing.T) {
		repo := &ledgerRepository{q: storage.pool}
		bad := ledgerEntry()
		bad.Meta = map[string]any{"ch": make(chan int)}
		if err := repo.Append(ctx, bad); err == nil {
			t.Fatal("expected marshal error")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestLedgerBalanceAndHistory(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &ledgerRepository{q: storage.pool}
	ctx := context.Background()

	mock.ExpectQuery("SELECT amount FROM balances").WithArgs(int64(1), "cash").
		WillReturnRows(pgxmockv3.NewRows([]string{"amount"}).AddRow(decimal.NewFromInt(42)))
	if got, err := repo.Balance(ctx, 1, model.BalanceCash); err != nil || !got.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("unexpected balance %s err=%v", got, err)
	}

	mock.ExpectQuery("SELECT amount FROM balances").WithArgs(int64(2), "cash").WillReturnError(pgx.ErrNoRows)
	if got, err := repo.Balance(ctx, 2, model.BalanceCash); err != nil || !got.IsZero() {
		t.Fatalf("expected zero balance, got %s err=%v", got, err)
	}

	mock.ExpectQuery("SELECT amount FROM balances").WithArgs(int64(3), "cash").WillReturnError(errors.New("db"))
	if _, err := repo.Balance(ctx, 3, model.BalanceCash); err == nil {
		t.Fatal("expected error")
	}

	cols := []string{"id", "user_id", "amount", "transaction_type", "balance_type", "resultant_balance", "meta", "created_at"}
	now := time.Now()
	mock.ExpectQuery("SELECT id, user_id, amount, transaction_type").WithArgs(int64(1), "crypto").WillReturnRows(
		pgxmockv3.NewRows(cols).
			AddRow(uuid.New(), int64(1), decimal.NewFromInt(100), model.TxDeposit, model.BalanceCrypto, decimal.NewFromInt(100), []byte(`{}`), now).
			AddRow(uuid.New(), int64(1), decimal.NewFromInt(-10), model.TxWithdrawal, model.BalanceCrypto, decimal.NewFromInt(90), []byte(`{"plugin":"bitcoin"}`), now))
	history, err := repo.History(ctx, 1, model.BalanceCrypto)
	if err != nil || len(history) != 2 {
		t.Fatalf("unexpected history %v err=%v", history, err)
	}
	if history[1].Meta["plugin"] != "bitcoin" || history[1].TransactionType != model.TxWithdrawal {
		t.Fatalf("unexpected entry %+v", history[1])
	}

	mock.ExpectQuery("SELECT id, user_id, amount, transaction_type").WithArgs(int64(2), "crypto").WillReturnRows(
		pgxmockv3.NewRows(cols).
			AddRow(uuid.New(), int64(2), decimal.NewFromInt(1), model.TxDeposit, model.BalanceCrypto, decimal.NewFromInt(1), []byte(`{bad`), now))
	if _, err := repo.History(ctx, 2, model.BalanceCrypto); err == nil {
		t.Fatal("expected meta decode error")
	}

	mock.ExpectQuery("SELECT id, user_id, amount, transaction_type").WithArgs(int64(3), "crypto").WillReturnError(errors.New("query"))
	if _, err := repo.History(ctx, 3, model.BalanceCrypto); err == nil {
		t.Fatal("expected error")
	}

	since := now.Add(-24 * time.Hour)
	mock.ExpectQuery("SELECT COALESCE").WithArgs(int64(1), "deposit", since).
		WillReturnRows(pgxmockv3.NewRows([]string{"sum"}).AddRow(decimal.NewFromInt(300)))
	if got, err := repo.DepositsSince(ctx, 1, since); err != nil || !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected deposits %s err=%v", got, err)
	}

	mock.ExpectQuery("SELECT COALESCE").WithArgs(int64(1), "deposit", since).WillReturnError(errors.New("db"))
	if _, err := repo.DepositsSince(ctx, 1, since); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}

	rowsRepo := &ledgerRepository{q: &rowsErrorPool{rows: &errorRows{err: errors.New("rows err")}}}
	if _, err := rowsRepo.History(ctx, 1, model.BalanceCash); err == nil {
		t.Fatal("expected rows error")
	}
}
