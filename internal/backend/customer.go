package backend

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/soyeahso/rewardbot/internal/logging"
)

// Cashback is a customer's cashback balance.
type Cashback struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// CashbackProvider supplies cashback balances.
type CashbackProvider interface {
	Cashback(ctx context.Context, customerID string) (*Cashback, error)
}

// CustomerClient talks to the customer service.
type CustomerClient struct {
	http *httpClient
}

// NewCustomerClient creates a customer service client.
func NewCustomerClient(opts Options, log *logging.Logger) *CustomerClient {
	return &CustomerClient{http: newHTTPClient("customer", opts, log)}
}

// Cashback fetches GET /customers/{id}/cashback.
func (c *CustomerClient) Cashback(ctx context.Context, customerID string) (*Cashback, error) {
	var out Cashback
	if err := c.http.getJSON(ctx, "cashback", "/customers/"+escape(customerID)+"/cashback", &out); err != nil {
		return nil, err
	}
	if out.Currency == "" {
		out.Currency = "USD"
	}
	return &out, nil
}
