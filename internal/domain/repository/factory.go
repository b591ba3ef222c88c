package repository

import "context"

// UnitOfWork exposes repositories bound to one transaction scope.
type UnitOfWork interface {
	Users() UserRepository
	Ledger() LedgerRepository
	Withdrawals() WithdrawalRepository
	Outbox() OutboxRepository
}

// Transactor runs fn inside a single commit/rollback boundary. A non-nil
// error from fn rolls back every write made through uow.
type Transactor interface {
	WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
