package backend

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/soyeahso/rewardbot/internal/logging"
)

// RedemptionOption is one catalogue entry from the redemption service.
type RedemptionOption struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	PointsRequired int64            `json:"pointsRequired"`
	Category       string           `json:"category"`
	CashValue      *decimal.Decimal `json:"cashValue"`
	Available      bool             `json:"available"`
}

// RedemptionProvider supplies redemption options.
type RedemptionProvider interface {
	Options(ctx context.Context, customerID string) ([]RedemptionOption, error)
}

// RedemptionClient talks to the redemption service.
type RedemptionClient struct {
	http *httpClient
}

// NewRedemptionClient creates a redemption service client.
func NewRedemptionClient(opts Options, log *logging.Logger) *RedemptionClient {
	return &RedemptionClient{http: newHTTPClient("redemption", opts, log)}
}

// Options fetches GET /redemptions/{id}/options.
func (c *RedemptionClient) Options(ctx context.Context, customerID string) ([]RedemptionOption, error) {
	var out []RedemptionOption
	if err := c.http.getJSON(ctx, "options", "/redemptions/"+escape(customerID)+"/options", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []RedemptionOption{}
	}
	return out, nil
}
