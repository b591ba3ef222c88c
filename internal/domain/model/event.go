package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outbox event types.
const (
	EventWithdrawalStatusChanged = "withdrawal.status_changed"
	EventBalanceUpdated          = "balance.updated"
)

// Aggregates that emit events.
const (
	AggregateWithdrawal = "withdrawal"
	AggregateBalance    = "balance"
)

// OutboxEvent is a domain event stored next to the change it describes.
type OutboxEvent struct {
	ID          uuid.UUID
	Aggregate   string
	AggregateID string
	Type        string
	Payload     json.RawMessage
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Notification is a user-facing status message.
type Notification struct {
	UserID       int64
	WithdrawalID uuid.UUID
	Status       WithdrawalStatus
	Reason       *ReasonCode
	Message      string
}

// Alert is an operator-facing message.
type Alert struct {
	Subject string
	Body    string
	Fields  map[string]string
}
