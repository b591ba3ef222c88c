package model

// ReasonCode is the stable failure/flag annotation stored on a withdrawal.
type ReasonCode string

const (
	ReasonSeonCheck            ReasonCode = "SEON_CHECK"
	ReasonChainalysisCheck     ReasonCode = "CHAINALYSIS_CHECK"
	ReasonDeductBalance        ReasonCode = "DEDUCT_BALANCE"
	ReasonPluginUnknownFailure ReasonCode = "PLUGIN_UNKNOWN_FAILURE"
	ReasonRiskCheck            ReasonCode = "RISK_CHECK"
	ReasonTransactionFailed    ReasonCode = "TRANSACTION_FAILED"
	ReasonAccountLocked        ReasonCode = "ACCOUNT_LOCKED"
)

var reasonMessages = map[ReasonCode]string{
	ReasonSeonCheck:            "Your withdrawal could not be approved by our fraud checks. Please contact support.",
	ReasonChainalysisCheck:     "The destination address did not pass our compliance screening.",
	ReasonDeductBalance:        "We could not reserve funds for this withdrawal.",
	ReasonPluginUnknownFailure: "The payment provider could not process your withdrawal. Your funds have been returned.",
	ReasonRiskCheck:            "Withdrawals are currently unavailable for your account. Please contact support.",
	ReasonTransactionFailed:    "The transfer failed on the settlement network. Your funds have been returned.",
	ReasonAccountLocked:        "Your account is locked. Please contact support.",
}

// Message returns the fixed human-readable text for the code.
func (r ReasonCode) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// ReasonPtr returns a pointer to r for optional fields.
func ReasonPtr(r ReasonCode) *ReasonCode {
	return &r
}
