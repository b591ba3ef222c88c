package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

const withdrawalColumns = `id, plugin, network, user_id, currency, total_value, status, attempts,
                   transaction_id, reason, request_fields, created_at, updated_at`

type withdrawalRepository struct {
	q querier
}

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var (
		w      model.Withdrawal
		fields []byte
	)
	err := row.Scan(
		&w.ID, &w.Plugin, &w.Network, &w.UserID, &w.Currency, &w.TotalValue, &w.Status, &w.Attempts,
		&w.TransactionID, &w.Reason, &fields, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &w.RequestFields); err != nil {
		return nil, fmt.Errorf("decode request fields: %w", err)
	}
	return &w, nil
}

func collectWithdrawals(rows pgx.Rows) ([]model.Withdrawal, error) {
	defer rows.Close()

	var result []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func statusStrings(statuses []model.WithdrawalStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *withdrawalRepository) Create(ctx context.Context, w *model.Withdrawal) error {
	if err := w.RequestFields.Validate(); err != nil {
		return err
	}
	fields, err := json.Marshal(w.RequestFields)
	if err != nil {
		return fmt.Errorf("encode request fields: %w", err)
	}

	const query = `INSERT INTO withdrawals (id, plugin, network, user_id, currency, total_value, status, attempts, request_fields)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
                   RETURNING created_at, updated_at`
	err = r.q.QueryRow(ctx, query,
		w.ID, string(w.Plugin), string(w.Network), w.UserID, w.Currency, w.TotalValue,
		string(model.StatusInitiated), fields,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return err
	}
	w.Status = model.StatusInitiated
	w.Attempts = 0
	return nil
}

func (r *withdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id=$1`
	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *withdrawalRepository) Transition(ctx context.Context, id uuid.UUID, t model.Transition) (*model.Withdrawal, error) {
	if !t.Allowed() {
		return nil, domainErrors.ErrInvalidTransition
	}

	var reason, txID *string
	if t.Reason != nil {
		s := string(*t.Reason)
		reason = &s
	}
	if t.TransactionID != "" {
		txID = &t.TransactionID
	}

	query := `UPDATE withdrawals
              SET status = $2, reason = COALESCE($3, reason),
                  transaction_id = COALESCE(transaction_id, $4), updated_at = NOW()
              WHERE id = $1 AND status = ANY($5)
              RETURNING ` + withdrawalColumns
	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id, string(t.To), reason, txID, statusStrings(t.From)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrStaleTransition
		}
		return nil, err
	}
	return w, nil
}

func (r *withdrawalRepository) Claim(ctx context.Context, id uuid.UUID) (*model.Withdrawal, bool, error) {
	query := `UPDATE withdrawals SET status = $2, updated_at = NOW()
              WHERE id = $1 AND status = $3
              RETURNING ` + withdrawalColumns
	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id, string(model.StatusProcessing), string(model.StatusPending)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return w, true, nil
}

func (r *withdrawalRepository) RecordFailure(ctx context.Context, id uuid.UUID, observedAttempts, retryLimit int) (*model.Withdrawal, error) {
	attempts := observedAttempts + 1
	next := model.StatusAfterFailure(attempts, retryLimit)

	query := `UPDATE withdrawals SET status = $2, attempts = $3, updated_at = NOW()
              WHERE id = $1 AND status = $4 AND attempts = $5
              RETURNING ` + withdrawalColumns
	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id, string(next), attempts, string(model.StatusProcessing), observedAttempts))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrStaleTransition
		}
		return nil, err
	}
	return w, nil
}

func (r *withdrawalRepository) ListPending(ctx context.Context, rails []model.Rail, limit int) ([]model.Withdrawal, error) {
	plugins := make([]string, len(rails))
	for i, rail := range rails {
		plugins[i] = string(rail)
	}
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
              WHERE status = $1 AND plugin = ANY($2)
              ORDER BY updated_at
              LIMIT $3`
	rows, err := r.q.Query(ctx, query, string(model.StatusPending), plugins, limit)
	if err != nil {
		return nil, err
	}
	return collectWithdrawals(rows)
}

func (r *withdrawalRepository) ListByStatus(ctx context.Context, status model.WithdrawalStatus, limit int) ([]model.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
              WHERE status = $1
              ORDER BY created_at
              LIMIT $2`
	rows, err := r.q.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectWithdrawals(rows)
}

func (r *withdrawalRepository) ResetStale(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	const query = `UPDATE withdrawals SET status = $1, updated_at = NOW()
                   WHERE status = ANY($2) AND updated_at < NOW() - make_interval(secs => $3)
                   RETURNING id`
	stale := statusStrings([]model.WithdrawalStatus{model.StatusProcessing, model.StatusReprocessing})
	rows, err := r.q.Query(ctx, query, string(model.StatusPending), stale, olderThan.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *withdrawalRepository) SumSince(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(total_value), 0) FROM withdrawals
                   WHERE user_id = $1 AND created_at >= $2 AND NOT (status = ANY($3))`
	excluded := statusStrings([]model.WithdrawalStatus{model.StatusFailed, model.StatusDeclined, model.StatusCancelled})
	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, query, userID, since, excluded).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
