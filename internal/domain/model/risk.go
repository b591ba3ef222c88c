package model

import "github.com/shopspring/decimal"

// RiskOutcome is the verdict of the risk gate.
type RiskOutcome string

const (
	RiskClear    RiskOutcome = "clear"
	RiskFlagged  RiskOutcome = "flagged"
	RiskDeclined RiskOutcome = "declined"
)

// RiskDecision is returned by the risk gate and never persisted as such.
type RiskDecision struct {
	Outcome RiskOutcome
	Reason  ReasonCode
	Message string
}

func ClearDecision() RiskDecision { return RiskDecision{Outcome: RiskClear} }

func FlaggedDecision(message string) RiskDecision {
	return RiskDecision{Outcome: RiskFlagged, Message: message}
}

func DeclinedDecision(reason ReasonCode) RiskDecision {
	return RiskDecision{Outcome: RiskDeclined, Reason: reason, Message: reason.Message()}
}

// FraudScoreRequest is the transaction context sent to the fraud scorer.
type FraudScoreRequest struct {
	UserID       int64
	Email        string
	Session      string
	DeviceHash   string
	Rail         Rail
	Amount       decimal.Decimal
	Currency     string
	CustomFields map[string]any
}

// FraudRule is one rule the scorer applied.
type FraudRule struct {
	ID        string
	Name      string
	Operation string
	Score     float64
}

// FraudScore is the scorer's verdict.
type FraudScore struct {
	State        string
	Score        float64
	AppliedRules []FraudRule
}

// HardDecline reports whether the scorer rejected the transaction.
func (s FraudScore) HardDecline() bool {
	return s.State == "DECLINE"
}

// AddressScreening is the address reputation prescreen result.
type AddressScreening struct {
	Address    string
	Risk       string
	RiskReason string
	Cluster    string
	Category   string
}

// HighRisk reports whether the destination must be declined.
func (a AddressScreening) HighRisk() bool {
	return a.Risk == "High" || a.Risk == "Severe"
}
