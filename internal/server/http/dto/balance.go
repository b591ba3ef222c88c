package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceResponse represents the user's spendable balances.
type BalanceResponse struct {
	Cash   decimal.Decimal `json:"cash"`
	Crypto decimal.Decimal `json:"crypto"`
}

// LedgerEntryResponse describes one ledger history entry.
type LedgerEntryResponse struct {
	ID               string          `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	TransactionType  string          `json:"transactionType"`
	BalanceType      string          `json:"balanceType"`
	ResultantBalance decimal.Decimal `json:"resultantBalance"`
	CreatedAt        time.Time       `json:"createdAt"`
}
