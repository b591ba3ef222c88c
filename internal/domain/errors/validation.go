package errors

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable validation code used for translated messages.
type Code string

const (
	CodeInvalidRequest            Code = "INVALID_REQUEST"
	CodeInvalidAmount             Code = "INVALID_AMOUNT"
	CodeUnknownPlugin             Code = "PLUGIN_UNKNOWN"
	CodeEmailNotVerified          Code = "EMAIL_NOT_VERIFIED"
	CodeWithdrawalsDisabled       Code = "WITHDRAWALS_DISABLED"
	CodeDailyLimitExceeded        Code = "DAILY_LIMIT_EXCEEDED"
	CodeWageringIncomplete        Code = "WAGERING_INCOMPLETE"
	CodeRailDisabled              Code = "RAIL_DISABLED"
	CodeTwoFactorRequired         Code = "TWO_FACTOR_REQUIRED"
	CodeTwoFactorInvalid          Code = "TWO_FACTOR_INVALID"
	CodeInvalidAddress            Code = "INVALID_ADDRESS"
	CodeHotWalletAddress          Code = "HOT_WALLET_ADDRESS"
	CodeInvalidTag                Code = "INVALID_TAG"
	CodeInvalidAccount            Code = "INVALID_ACCOUNT"
	CodeBelowMinimum              Code = "BELOW_MINIMUM"
	CodeFeeExceedsAmount          Code = "FEE_EXCEEDS_AMOUNT"
	CodeInsufficientCashBalance   Code = "INSUFFICIENT_CASH_BALANCE"
	CodeInsufficientCryptoBalance Code = "INSUFFICIENT_CRYPTO_BALANCE"
	CodeKYCLevelTooLow            Code = "KYC_LEVEL_TOO_LOW"
	CodeTransferRail              Code = "TRANSFER_RAIL_NOT_CRYPTO"
	CodeWithdrawalInProgress      Code = "WITHDRAWAL_IN_PROGRESS"
	CodeNotFlagged                Code = "WITHDRAWAL_NOT_FLAGGED"
)

var messages = map[Code]string{
	CodeInvalidRequest:            "The withdrawal request is malformed.",
	CodeInvalidAmount:             "Enter a positive withdrawal amount.",
	CodeUnknownPlugin:             "This withdrawal method is not supported.",
	CodeEmailNotVerified:          "Verify your email address before withdrawing.",
	CodeWithdrawalsDisabled:       "Withdrawals are disabled for your account.",
	CodeDailyLimitExceeded:        "This withdrawal exceeds your daily limit.",
	CodeWageringIncomplete:        "Complete the wagering requirements of your active promotions first.",
	CodeRailDisabled:              "This withdrawal method is temporarily unavailable.",
	CodeTwoFactorRequired:         "Two-factor authentication is required for this withdrawal.",
	CodeTwoFactorInvalid:          "The two-factor code is invalid.",
	CodeInvalidAddress:            "The destination address is invalid.",
	CodeHotWalletAddress:          "You cannot withdraw to a platform deposit address.",
	CodeInvalidTag:                "The destination tag is invalid.",
	CodeInvalidAccount:            "The payout account is invalid.",
	CodeBelowMinimum:              "The amount is below the minimum withdrawal.",
	CodeFeeExceedsAmount:          "The network fee is higher than the withdrawal amount.",
	CodeInsufficientCashBalance:   "Your cash balance is too low.",
	CodeInsufficientCryptoBalance: "Your crypto balance is too low.",
	CodeKYCLevelTooLow:            "Complete identity verification to transfer funds.",
	CodeTransferRail:              "Transfers are only available to crypto withdrawal methods.",
	CodeWithdrawalInProgress:      "Another withdrawal is already in progress. Try again shortly.",
	CodeNotFlagged:                "The withdrawal is not awaiting review.",
}

// ValidationError is a user-safe precondition failure.
type ValidationError struct {
	Code Code
	Meta map[string]any
}

// NewValidationError builds a ValidationError with optional key/value metadata.
func NewValidationError(code Code, kv ...any) *ValidationError {
	e := &ValidationError{Code: code}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if e.Meta == nil {
			e.Meta = make(map[string]any)
		}
		e.Meta[key] = kv[i+1]
	}
	return e
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Code)
}

// Message returns the translated user-facing text.
func (e *ValidationError) Message() string {
	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	return string(e.Code)
}

// Is lets insufficient balance codes match ErrInsufficientBalance.
func (e *ValidationError) Is(target error) bool {
	if target == ErrInsufficientBalance {
		return e.Code == CodeInsufficientCashBalance || e.Code == CodeInsufficientCryptoBalance
	}
	if t, ok := target.(*ValidationError); ok {
		return t.Code == e.Code
	}
	return false
}

// AsValidation extracts a ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
