package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

type ledgerRepository struct {
	q    querier
	inTx bool
}

func (r *ledgerRepository) Adjust(ctx context.Context, userID int64, balanceType model.BalanceType, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	var resultant decimal.Decimal

	if delta.IsNegative() {
		const debit = `UPDATE balances SET amount = amount + $3, updated_at = NOW()
                       WHERE user_id = $1 AND balance_type = $2 AND (amount + $3 >= 0 OR $4)
                       RETURNING amount`
		err := r.q.QueryRow(ctx, debit, userID, string(balanceType), delta, allowNegative).Scan(&resultant)
		if err == nil {
			return resultant, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, err
		}
		if !allowNegative {
			return decimal.Zero, domainErrors.ErrInsufficientBalance
		}
	}

	const upsert = `INSERT INTO balances (user_id, balance_type, amount)
                    VALUES ($1, $2, $3)
                    ON CONFLICT (user_id, balance_type) DO UPDATE
                    SET amount = balances.amount + EXCLUDED.amount, updated_at = NOW()
                    RETURNING amount`
	if err := r.q.QueryRow(ctx, upsert, userID, string(balanceType), delta).Scan(&resultant); err != nil {
		return decimal.Zero, err
	}
	return resultant, nil
}

const ledgerSavepoint = "ledger_audit"

func (r *ledgerRepository) Append(ctx context.Context, entry *model.LedgerTransaction) error {
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal ledger meta: %w", err)
	}

	if !r.inTx {
		return r.insert(ctx, entry, rawMeta)
	}

	if _, err := r.q.Exec(ctx, "SAVEPOINT "+ledgerSavepoint); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := r.insert(ctx, entry, rawMeta); err != nil {
		if _, rbErr := r.q.Exec(ctx, "ROLLBACK TO SAVEPOINT "+ledgerSavepoint); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return err
	}
	if _, err := r.q.Exec(ctx, "RELEASE SAVEPOINT "+ledgerSavepoint); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (r *ledgerRepository) insert(ctx context.Context, entry *model.LedgerTransaction, meta []byte) error {
	const query = `INSERT INTO ledger_transactions
                   (id, user_id, amount, transaction_type, balance_type, resultant_balance, meta, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		entry.ID, entry.UserID, entry.Amount, string(entry.TransactionType), string(entry.BalanceType),
		entry.ResultantBalance, meta, entry.CreatedAt,
	)
	return err
}

func (r *ledgerRepository) Balance(ctx context.Context, userID int64, balanceType model.BalanceType) (decimal.Decimal, error) {
	const query = `SELECT amount FROM balances WHERE user_id=$1 AND balance_type=$2`
	var amount decimal.Decimal
	if err := r.q.QueryRow(ctx, query, userID, string(balanceType)).Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return amount, nil
}

func (r *ledgerRepository) History(ctx context.Context, userID int64, balanceType model.BalanceType) ([]model.LedgerTransaction, error) {
	const query = `SELECT id, user_id, amount, transaction_type, balance_type, resultant_balance, meta, created_at
                   FROM ledger_transactions WHERE user_id=$1 AND balance_type=$2 ORDER BY seq`
	rows, err := r.q.Query(ctx, query, userID, string(balanceType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.LedgerTransaction
	for rows.Next() {
		var (
			e    model.LedgerTransaction
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.TransactionType, &e.BalanceType, &e.ResultantBalance, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, fmt.Errorf("decode ledger meta: %w", err)
			}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ledgerRepository) DepositsSince(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions
                   WHERE user_id=$1 AND transaction_type=$2 AND created_at >= $3`
	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, query, userID, string(model.TxDeposit), since).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
