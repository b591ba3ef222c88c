package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceType selects which of the user's balances is touched.
type BalanceType string

const (
	BalanceCash   BalanceType = "cash"
	BalanceCrypto BalanceType = "crypto"
)

// TransactionType classifies a ledger delta.
type TransactionType string

const (
	TxWithdrawal           TransactionType = "withdrawal"
	TxCancelledWithdrawal  TransactionType = "cancelledWithdrawal"
	TxDeposit              TransactionType = "deposit"
	TxAdminAdjustment      TransactionType = "adminAdjustment"
	TxCashToCryptoTransfer TransactionType = "cashToCryptoTransfer"
)

// LedgerTransaction is an append-only record of one balance delta.
type LedgerTransaction struct {
	ID               uuid.UUID
	UserID           int64
	Amount           decimal.Decimal
	TransactionType  TransactionType
	BalanceType      BalanceType
	ResultantBalance decimal.Decimal
	Meta             map[string]any
	CreatedAt        time.Time
}

// Balances groups a user's balances by type.
type Balances struct {
	Cash   decimal.Decimal
	Crypto decimal.Decimal
}
