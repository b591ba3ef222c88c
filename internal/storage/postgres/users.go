package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

type userRepository struct {
	q querier
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT id, email, email_verified, locked, withdrawals_enabled, two_factor_enabled,
                   two_factor_secret, kyc_level, daily_withdraw_limit, lifetime_withdrawn, created_at
                   FROM users WHERE id=$1`
	var u model.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.EmailVerified, &u.Locked, &u.WithdrawalsEnabled, &u.TwoFactorEnabled,
		&u.TwoFactorSecret, &u.KYCLevel, &u.DailyWithdrawLimit, &u.LifetimeWithdrawn, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) ActivePromotions(ctx context.Context, userID int64) ([]model.Promotion, error) {
	const query = `SELECT id, user_id, wager_required, wagered, active
                   FROM user_promotions WHERE user_id=$1 AND active ORDER BY id`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Promotion
	for rows.Next() {
		var p model.Promotion
		if err := rows.Scan(&p.ID, &p.UserID, &p.WagerRequired, &p.Wagered, &p.Active); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *userRepository) AddNote(ctx context.Context, userID int64, note string) error {
	const query = `INSERT INTO user_notes (user_id, note) VALUES ($1, $2)`
	_, err := r.q.Exec(ctx, query, userID, note)
	return err
}

func (r *userRepository) AddLifetimeWithdrawn(ctx context.Context, userID int64, amount decimal.Decimal) error {
	const query = `UPDATE users SET lifetime_withdrawn = lifetime_withdrawn + $2 WHERE id=$1`
	tag, err := r.q.Exec(ctx, query, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *userRepository) DisableWithdrawals(ctx context.Context, userID int64) error {
	const query = `UPDATE users SET withdrawals_enabled = FALSE WHERE id=$1`
	tag, err := r.q.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}
