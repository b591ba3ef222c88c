package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RequestFieldsVersion is the current layout of RequestFields.
const RequestFieldsVersion = 1

// WithdrawalRequest is the canonical, parsed form of a withdrawal submission.
type WithdrawalRequest struct {
	UserID          int64
	Rail            Rail
	Network         Network
	Currency        string
	Amount          decimal.Decimal
	BalanceType     BalanceType
	TransactionType TransactionType
	Address         string
	Tag             *uint32
	AccountID       string
	TwoFactorCode   string
	UserFeePaid     decimal.Decimal
}

// Fields builds the rail-specific payload persisted with the withdrawal.
func (r WithdrawalRequest) Fields() RequestFields {
	fields := RequestFields{
		Version:         RequestFieldsVersion,
		Rail:            r.Rail,
		BalanceType:     r.BalanceType,
		TransactionType: r.TransactionType,
	}
	if r.Rail.IsCrypto() {
		fields.Crypto = &CryptoFields{Address: r.Address, Tag: r.Tag, UserFeePaid: r.UserFeePaid}
	} else {
		fields.Fiat = &FiatFields{AccountID: r.AccountID, UserFeePaid: r.UserFeePaid}
	}
	return fields
}

// RequestFields is a versioned union keyed by Rail. Exactly one of Crypto
// or Fiat is set, matching the rail kind.
type RequestFields struct {
	Version         int             `json:"version"`
	Rail            Rail            `json:"rail"`
	BalanceType     BalanceType     `json:"balanceType,omitempty"`
	TransactionType TransactionType `json:"transactionType,omitempty"`
	Crypto          *CryptoFields   `json:"crypto,omitempty"`
	Fiat            *FiatFields     `json:"fiat,omitempty"`
}

// CryptoFields holds on-chain destination details.
type CryptoFields struct {
	Address     string          `json:"address"`
	Tag         *uint32         `json:"tag,omitempty"`
	UserFeePaid decimal.Decimal `json:"userFeePaid"`
}

// FiatFields holds processor payout details.
type FiatFields struct {
	AccountID   string          `json:"accountId"`
	UserFeePaid decimal.Decimal `json:"userFeePaid"`
}

var errFieldsMismatch = errors.New("request fields do not match rail")

// Validate checks that the populated variant agrees with Rail.
func (f RequestFields) Validate() error {
	if f.Version != RequestFieldsVersion {
		return fmt.Errorf("unsupported request fields version %d", f.Version)
	}
	if f.Rail.IsCrypto() {
		if f.Crypto == nil || f.Fiat != nil {
			return errFieldsMismatch
		}
		return nil
	}
	if f.Rail != RailFiat || f.Fiat == nil || f.Crypto != nil {
		return errFieldsMismatch
	}
	return nil
}

// RawRequest is a withdrawal submission as received from the client.
type RawRequest struct {
	Plugin  string `validate:"required"`
	Amount  string `validate:"required"`
	Network string `validate:"omitempty,alpha"`
	Fields  RawFields
}

// RawFields holds the rail-specific part of a submission.
type RawFields struct {
	Address       string `validate:"omitempty,printascii,max=128"`
	Tag           string
	AccountID     string `validate:"omitempty,max=64"`
	TwoFactorCode string `validate:"omitempty,numeric,len=6"`
}
