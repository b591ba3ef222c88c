package custody

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
	service       = "custody"
	feesPath      = "/v1/fees/estimate"
	transfersPath = "/v1/transfers"
)

// FeeRequest describes an outgoing transfer to price.
type FeeRequest struct {
	Network  model.Network
	Currency string
	Address  string
	Amount   decimal.Decimal
}

// TransferRequest submits an on-chain transfer. Reference doubles as the
// idempotency key, so resubmitting the same withdrawal never pays twice.
type TransferRequest struct {
	Reference string
	Network   model.Network
	Currency  string
	Address   string
	Tag       *uint32
	Amount    decimal.Decimal
}

// Client talks to the custody gateway that holds the hot wallets.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

type feeBody struct {
	Network  string          `json:"network"`
	Currency string          `json:"currency"`
	Address  string          `json:"address"`
	Amount   decimal.Decimal `json:"amount"`
}

type feeResponse struct {
	Fee decimal.Decimal `json:"fee"`
}

type transferBody struct {
	Reference string          `json:"reference"`
	Network   string          `json:"network"`
	Currency  string          `json:"currency"`
	Address   string          `json:"address"`
	Tag       *uint32         `json:"tag,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

type transferResponse struct {
	ID     string `json:"id"`
	TxHash string `json:"txHash"`
	Status string `json:"status"`
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

// EstimateFee returns the network fee the user pays for req.
func (c *Client) EstimateFee(ctx context.Context, req FeeRequest) (decimal.Decimal, error) {
	var out feeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(feeBody{Network: string(req.Network), Currency: req.Currency, Address: req.Address, Amount: req.Amount}).
		SetResult(&out).
		Post(feesPath)
	if err != nil {
		return decimal.Zero, fmt.Errorf("estimate fee: %w", err)
	}
	if err := upstream.Check(service, resp); err != nil {
		return decimal.Zero, err
	}
	return out.Fee, nil
}

// Transfer submits req and returns the gateway transfer id. A conflict means
// the reference was already submitted and the existing transfer is returned.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	var out transferResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.Reference).
		SetBody(transferBody{
			Reference: req.Reference,
			Network:   string(req.Network),
			Currency:  req.Currency,
			Address:   req.Address,
			Tag:       req.Tag,
			Amount:    req.Amount,
		}).
		SetResult(&out).
		SetError(&out).
		Post(transfersPath)
	if err != nil {
		return "", fmt.Errorf("submit transfer: %w", err)
	}

	if resp.StatusCode() == http.StatusConflict && out.ID != "" {
		c.logger.Info("transfer already submitted", zap.String("reference", req.Reference), zap.String("transfer_id", out.ID))
		return out.ID, nil
	}
	if err := upstream.Check(service, resp); err != nil {
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) && statusErr.ClientError() {
			return "", &domainErrors.RailError{Reason: model.ReasonTransactionFailed, Permanent: true, Err: err}
		}
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("custody returned empty transfer id")
	}
	return out.ID, nil
}
