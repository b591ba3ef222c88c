package model

// WithdrawalStatus describes the withdrawal lifecycle.
type WithdrawalStatus string

const (
	StatusInitiated    WithdrawalStatus = "INITIATED"
	StatusPending      WithdrawalStatus = "PENDING"
	StatusProcessing   WithdrawalStatus = "PROCESSING"
	StatusReprocessing WithdrawalStatus = "REPROCESSING"
	StatusCompleted    WithdrawalStatus = "COMPLETED"
	StatusFailed       WithdrawalStatus = "FAILED"
	StatusDeclined     WithdrawalStatus = "DECLINED"
	StatusFlagged      WithdrawalStatus = "FLAGGED"
	StatusApproved     WithdrawalStatus = "APPROVED"
	StatusRejected     WithdrawalStatus = "REJECTED"
	StatusCancelled    WithdrawalStatus = "CANCELLED"
)

var transitions = map[WithdrawalStatus][]WithdrawalStatus{
	StatusInitiated:    {StatusPending, StatusCompleted, StatusFailed, StatusDeclined, StatusFlagged},
	StatusPending:      {StatusProcessing, StatusFlagged},
	StatusProcessing:   {StatusCompleted, StatusPending, StatusReprocessing, StatusFailed},
	StatusReprocessing: {StatusPending},
	StatusFlagged:      {StatusApproved, StatusRejected},
	StatusApproved:     {StatusPending, StatusCompleted, StatusFailed},
	StatusRejected:     {StatusCancelled},
}

// IsTerminal reports whether no further transition is possible.
func (s WithdrawalStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDeclined, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to WithdrawalStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition describes a compare-and-set status change.
// TransactionID is written only when the record has none yet.
type Transition struct {
	From          []WithdrawalStatus
	To            WithdrawalStatus
	Reason        *ReasonCode
	TransactionID string
}

// Allowed reports whether every source status may move to To.
func (t Transition) Allowed() bool {
	if len(t.From) == 0 {
		return false
	}
	for _, from := range t.From {
		if !CanTransition(from, t.To) {
			return false
		}
	}
	return true
}
