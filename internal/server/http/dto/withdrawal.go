package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawRequest describes withdrawal and transfer payloads.
type WithdrawRequest struct {
	Plugin  string           `json:"plugin"`
	Amount  *decimal.Decimal `json:"amount"`
	Network string           `json:"network"`
	Fields  WithdrawFields   `json:"fields"`
}

// WithdrawFields carries rail specific destination data.
type WithdrawFields struct {
	Address       string `json:"address"`
	Tag           Tag    `json:"tag"`
	AccountID     string `json:"accountId"`
	TwoFactorCode string `json:"twoFactorCode"`
}

// Tag accepts a destination tag sent either as a JSON number or a string.
type Tag string

func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Tag(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Tag(n.String())
	return nil
}

// SendResponse describes the outcome of a submission.
type SendResponse struct {
	WithdrawalID string `json:"withdrawalId"`
	Status       string `json:"status"`
	ExternalID   string `json:"externalId,omitempty"`
}

// WithdrawalResponse is the admin view of a withdrawal record.
type WithdrawalResponse struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"userId"`
	Plugin        string          `json:"plugin"`
	Network       string          `json:"network"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	TransactionID string          `json:"transactionId,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ReviewRequest carries an optional reviewer note.
type ReviewRequest struct {
	Note string `json:"note"`
}
