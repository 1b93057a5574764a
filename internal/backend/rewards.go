package backend

import (
	"context"

	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/logging"
)

// Balance is the rewards service view of a customer's points.
type Balance struct {
	TotalPoints     int64        `json:"totalPoints"`
	AvailablePoints int64        `json:"availablePoints"`
	ExpiredPoints   int64        `json:"expiredPoints"`
	NextExpiryDate  *domain.Date `json:"nextExpiryDate"`
}

// ExpiringLot is a batch of points with a shared expiry date.
type ExpiringLot struct {
	Points     int64       `json:"points"`
	ExpiryDate domain.Date `json:"expiryDate"`
	Source     string      `json:"source"`
}

// RewardsProvider supplies point balances and expiring lots.
type RewardsProvider interface {
	Balance(ctx context.Context, customerID string) (*Balance, error)
	ExpiringPoints(ctx context.Context, customerID string) ([]ExpiringLot, error)
}

// RewardsClient talks to the rewards service.
type RewardsClient struct {
	http *httpClient
}

// NewRewardsClient creates a rewards service client.
func NewRewardsClient(opts Options, log *logging.Logger) *RewardsClient {
	return &RewardsClient{http: newHTTPClient("rewards", opts, log)}
}

// Balance fetches GET /rewards/{id}/balance.
func (c *RewardsClient) Balance(ctx context.Context, customerID string) (*Balance, error) {
	var out Balance
	if err := c.http.getJSON(ctx, "balance", "/rewards/"+escape(customerID)+"/balance", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExpiringPoints fetches GET /rewards/{id}/expiring. An empty list is a valid
// answer and is returned as a non-nil slice.
func (c *RewardsClient) ExpiringPoints(ctx context.Context, customerID string) ([]ExpiringLot, error) {
	var out []ExpiringLot
	if err := c.http.getJSON(ctx, "expiring", "/rewards/"+escape(customerID)+"/expiring", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []ExpiringLot{}
	}
	return out, nil
}
