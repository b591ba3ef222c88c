package chainalysis

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
	service      = "chainalysis"
	entitiesPath = "/api/risk/v2/entities"
)

// Client screens destination addresses against the entity risk API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

type registerRequest struct {
	Address string `json:"address"`
}

type entityResponse struct {
	Address    string `json:"address"`
	Risk       string `json:"risk"`
	RiskReason string `json:"riskReason"`
	Cluster    *struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"cluster"`
}

func New(endpoint config.Endpoint, logger *zap.Logger) (*Client, error) {
	http, err := upstream.NewClient(service, endpoint)
	if err != nil {
		return nil, err
	}
	if endpoint.APIKey != "" {
		http.SetHeader("Token", endpoint.APIKey)
	}
	return &Client{http: http, logger: logger}, nil
}

// Screen registers address and fetches its risk assessment.
func (c *Client) Screen(ctx context.Context, address string) (model.AddressScreening, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(registerRequest{Address: address}).
		Post(entitiesPath)
	if err != nil {
		return model.AddressScreening{}, fmt.Errorf("register address: %w", err)
	}
	if err := upstream.Check(service, resp); err != nil {
		return model.AddressScreening{}, err
	}

	var out entityResponse
	resp, err = c.http.R().
		SetContext(ctx).
		SetPathParam("address", address).
		SetResult(&out).
		Get(entitiesPath + "/{address}")
	if err != nil {
		return model.AddressScreening{}, fmt.Errorf("fetch address risk: %w", err)
	}
	if err := upstream.Check(service, resp); err != nil {
		return model.AddressScreening{}, err
	}

	screening := model.AddressScreening{
		Address:    address,
		Risk:       out.Risk,
		RiskReason: out.RiskReason,
	}
	if out.Cluster != nil {
		screening.Cluster = out.Cluster.Name
		screening.Category = out.Cluster.Category
	}
	c.logger.Debug("address screened", zap.String("risk", screening.Risk), zap.String("category", screening.Category))
	return screening, nil
}
