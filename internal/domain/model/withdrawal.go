package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Withdrawal is the persisted withdrawal record.
type Withdrawal struct {
	ID            uuid.UUID
	Plugin        Rail
	Network       Network
	UserID        int64
	Currency      string
	TotalValue    decimal.Decimal
	Status        WithdrawalStatus
	Attempts      int
	TransactionID *string
	Reason        *ReasonCode
	RequestFields RequestFields
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Request rebuilds the canonical request the record was created from.
func (w *Withdrawal) Request() WithdrawalRequest {
	req := WithdrawalRequest{
		UserID:          w.UserID,
		Rail:            w.Plugin,
		Network:         w.Network,
		Currency:        w.Currency,
		Amount:          w.TotalValue,
		BalanceType:     w.RequestFields.BalanceType,
		TransactionType: w.RequestFields.TransactionType,
	}
	switch {
	case w.RequestFields.Crypto != nil:
		req.Address = w.RequestFields.Crypto.Address
		req.Tag = w.RequestFields.Crypto.Tag
		req.UserFeePaid = w.RequestFields.Crypto.UserFeePaid
	case w.RequestFields.Fiat != nil:
		req.AccountID = w.RequestFields.Fiat.AccountID
		req.UserFeePaid = w.RequestFields.Fiat.UserFeePaid
	}
	if req.BalanceType == "" {
		req.BalanceType = w.Plugin.BalanceType()
	}
	if req.TransactionType == "" {
		req.TransactionType = TxWithdrawal
	}
	return req
}

// SendResult is what a rail reports after its synchronous send step.
// WithdrawalID is filled in by the orchestrator.
type SendResult struct {
	WithdrawalID uuid.UUID
	Status       WithdrawalStatus
	ExternalID   string
}
