package seon

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/adapter/upstream"
	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/model"
)

const (
	service   = "seon"
	scorePath = "/SeonRestService/fraud-api/v2/"
)

// Client scores withdrawals with the SEON fraud API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

type scoreRequest struct {
	ActionType          string         `json:"action_type"`
	TransactionID       string         `json:"transaction_id,omitempty"`
	UserID              string         `json:"user_id"`
	Email               string         `json:"email,omitempty"`
	Session             string         `json:"session,omitempty"`
	DeviceID            string         `json:"device_id,omitempty"`
	TransactionAmount   float64        `json:"transaction_amount"`
	TransactionCurrency string         `json:"transaction_currency"`
	PaymentMode         string         `json:"payment_mode"`
	CustomFields        map[string]any `json:"custom_fields,omitempty"`
}

type scoreResponse struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Data struct {
		ID           string  `json:"id"`
		State        string  `json:"state"`
		FraudScore   float64 `json:"fraud_score"`
		AppliedRules []struct {
			ID        string  `json:"id"`
			Name      string  `json:"name"`
			Operation string  `json:"operation"`
			Score     float64 `json:"score"`
		} `json:"applied_rules"`
	} `json:"data"`
}

func New(endpoint config.Endpoint, logger *zap.Logger) (*Client, error) {
	http, err := upstream.NewClient(service, endpoint)
	if err != nil {
		return nil, err
	}
	if endpoint.APIKey != "" {
		http.SetHeader("X-API-KEY", endpoint.APIKey)
	}
	return &Client{http: http, logger: logger}, nil
}

// Score sends the transaction context and returns the scorer's verdict.
func (c *Client) Score(ctx context.Context, req model.FraudScoreRequest) (model.FraudScore, error) {
	amount, _ := req.Amount.Float64()
	body := scoreRequest{
		ActionType:          "withdrawal",
		UserID:              fmt.Sprintf("%d", req.UserID),
		Email:               req.Email,
		Session:             req.Session,
		DeviceID:            req.DeviceHash,
		TransactionAmount:   amount,
		TransactionCurrency: req.Currency,
		PaymentMode:         string(req.Rail),
		CustomFields:        req.CustomFields,
	}

	var out scoreResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(scorePath)
	if err != nil {
		return model.FraudScore{}, fmt.Errorf("seon request: %w", err)
	}
	if err := upstream.Check(service, resp); err != nil {
		c.logger.Error("fraud scoring failed", zap.Int("status", resp.StatusCode()), zap.Int64("user_id", req.UserID))
		return model.FraudScore{}, err
	}
	if !out.Success {
		return model.FraudScore{}, fmt.Errorf("seon rejected request: %s %s", out.Error.Code, out.Error.Message)
	}

	score := model.FraudScore{State: out.Data.State, Score: out.Data.FraudScore}
	for _, r := range out.Data.AppliedRules {
		score.AppliedRules = append(score.AppliedRules, model.FraudRule{
			ID:        r.ID,
			Name:      r.Name,
			Operation: r.Operation,
			Score:     r.Score,
		})
	}
	return score, nil
}
