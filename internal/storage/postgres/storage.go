package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/domain/repository"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxPool interface {
	querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *zap.Logger
}

// New connects to PostgreSQL and makes sure the schema exists.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Storage) Users() repository.UserRepository {
	return &userRepository{q: s.pool}
}

func (s *Storage) Ledger() repository.LedgerRepository {
	return &ledgerRepository{q: s.pool}
}

func (s *Storage) Withdrawals() repository.WithdrawalRepository {
	return &withdrawalRepository{q: s.pool}
}

func (s *Storage) Outbox() repository.OutboxRepository {
	return &outboxRepository{q: s.pool, storage: s}
}

// txUnit binds repositories to an open transaction.
type txUnit struct {
	tx      pgx.Tx
	storage *Storage
}

func (u *txUnit) Users() repository.UserRepository {
	return &userRepository{q: u.tx}
}

func (u *txUnit) Ledger() repository.LedgerRepository {
	return &ledgerRepository{q: u.tx, inTx: true}
}

func (u *txUnit) Withdrawals() repository.WithdrawalRepository {
	return &withdrawalRepository{q: u.tx}
}

func (u *txUnit) Outbox() repository.OutboxRepository {
	return &outboxRepository{q: u.tx, storage: u.storage, inTx: true}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            email TEXT NOT NULL,
            email_verified BOOLEAN NOT NULL DEFAULT FALSE,
            locked BOOLEAN NOT NULL DEFAULT FALSE,
            withdrawals_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
            two_factor_secret TEXT NOT NULL DEFAULT '',
            kyc_level INTEGER NOT NULL DEFAULT 0,
            daily_withdraw_limit NUMERIC(20, 8) NOT NULL DEFAULT 0,
            lifetime_withdrawn NUMERIC(20, 8) NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS user_notes (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id),
            note TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS user_promotions (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id),
            wager_required NUMERIC(20, 8) NOT NULL DEFAULT 0,
            wagered NUMERIC(20, 8) NOT NULL DEFAULT 0,
            active BOOLEAN NOT NULL DEFAULT TRUE
        )`,
		`CREATE TABLE IF NOT EXISTS balances (
            user_id BIGINT NOT NULL REFERENCES users(id),
            balance_type TEXT NOT NULL,
            amount NUMERIC(20, 8) NOT NULL DEFAULT 0,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_id, balance_type)
        )`,
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
            seq BIGSERIAL PRIMARY KEY,
            id UUID UNIQUE NOT NULL,
            user_id BIGINT NOT NULL REFERENCES users(id),
            amount NUMERIC(20, 8) NOT NULL,
            transaction_type TEXT NOT NULL,
            balance_type TEXT NOT NULL,
            resultant_balance NUMERIC(20, 8) NOT NULL,
            meta JSONB NOT NULL DEFAULT '{}'::jsonb,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS withdrawals (
            id UUID PRIMARY KEY,
            plugin TEXT NOT NULL,
            network TEXT NOT NULL,
            user_id BIGINT NOT NULL REFERENCES users(id),
            currency TEXT NOT NULL,
            total_value NUMERIC(20, 8) NOT NULL,
            status TEXT NOT NULL,
            attempts INTEGER NOT NULL DEFAULT 0 CHECK (attempts >= 0),
            transaction_id TEXT,
            reason TEXT,
            request_fields JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
            seq BIGSERIAL PRIMARY KEY,
            id UUID UNIQUE NOT NULL,
            aggregate TEXT NOT NULL,
            aggregate_id TEXT NOT NULL,
            event_type TEXT NOT NULL,
            payload JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            published_at TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_user ON withdrawals(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user ON ledger_transactions(user_id, balance_type, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished ON outbox_events(seq) WHERE published_at IS NULL`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && s.logger != nil {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// WithinUnitOfWork runs fn with repositories bound to one transaction.
func (s *Storage) WithinUnitOfWork(ctx context.Context, fn func(context.Context, repository.UnitOfWork) error) error {
	return s.WithinTransaction(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txUnit{tx: tx, storage: s})
	})
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
