package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/adapter/upstream"
	"github.com/polkiloo/payouts/internal/config"
	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
)

const (
	service     = "processor"
	payoutsPath = "/v1/payouts"
)

// PayoutRequest asks the processor to pay out to a customer account.
type PayoutRequest struct {
	Reference string
	AccountID string
	Amount    decimal.Decimal
	Currency  string
}

// PayoutResult is the processor's acknowledgement.
type PayoutResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Client calls the fiat payment processor.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

type payoutBody struct {
	Reference string          `json:"reference"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func New(endpoint config.Endpoint, logger *zap.Logger) (*Client, error) {
	http, err := upstream.NewClient(service, endpoint)
	if err != nil {
		return nil, err
	}
	if endpoint.APIKey != "" {
		http.SetAuthToken(endpoint.APIKey)
	}
	return &Client{http: http, logger: logger}, nil
}

// Payout submits req keyed by its reference. Repeating a reference returns
// the payout created the first time.
func (c *Client) Payout(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	var out PayoutResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.Reference).
		SetBody(payoutBody(req)).
		SetResult(&out).
		SetError(&out).
		Post(payoutsPath)
	if err != nil {
		return PayoutResult{}, fmt.Errorf("submit payout: %w", err)
	}

	if resp.StatusCode() == http.StatusConflict && out.ID != "" {
		c.logger.Info("payout already submitted", zap.String("reference", req.Reference), zap.String("payout_id", out.ID))
		return out, nil
	}
	if err := upstream.Check(service, resp); err != nil {
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) && statusErr.ClientError() {
			return PayoutResult{}, &domainErrors.RailError{Reason: model.ReasonTransactionFailed, Permanent: true, Err: err}
		}
		return PayoutResult{}, err
	}
	if out.ID == "" {
		return PayoutResult{}, errors.New("processor returned empty payout id")
	}
	return out, nil
}
