package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date is a calendar date without a time component. It marshals as "2006-01-02".
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a Date in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	// Providers sometimes send full timestamps.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// RedemptionOption is one way to spend points.
type RedemptionOption struct {
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	PointsRequired int64            `json:"pointsRequired"`
	Category       string           `json:"category,omitempty"`
	CashValue      *decimal.Decimal `json:"cashValue,omitempty"`
	Available      bool             `json:"available"`
}

// ExpiryDetail is a lot of points that expires on a given date.
type ExpiryDetail struct {
	Points     int64  `json:"points"`
	ExpiryDate Date   `json:"expiryDate"`
	Source     string `json:"source,omitempty"`
}

// RewardContext is the merged view of backend data for one query.
//
// A nil field was not fetched because the intent did not need it. A non-nil
// empty slice means the data was requested and nothing was found.
type RewardContext struct {
	TotalPoints       *int64             `json:"totalPoints,omitempty"`
	AvailablePoints   *int64             `json:"availablePoints,omitempty"`
	ExpiredPoints     *int64             `json:"expiredPoints,omitempty"`
	NextExpiryDate    *Date              `json:"nextExpiryDate,omitempty"`
	CashbackBalance   *decimal.Decimal   `json:"cashbackBalance,omitempty"`
	CashbackCurrency  string             `json:"cashbackCurrency,omitempty"`
	RedemptionOptions []RedemptionOption `json:"redemptionOptions"`
	ExpiringPoints    []ExpiryDetail     `json:"expiringPoints"`
	Degraded          bool               `json:"degraded,omitempty"`
	// Partial marks a context where an optional lookup failed. It is never
	// cached, so it is not serialized either.
	Partial bool `json:"-"`
}

// DegradedContext is the safe substitute used when the balance anchor cannot
// be fetched: zero counts, zero cashback, empty lists.
func DegradedContext() *RewardContext {
	zero := decimal.Zero
	return &RewardContext{
		TotalPoints:       Int64(0),
		AvailablePoints:   Int64(0),
		ExpiredPoints:     Int64(0),
		CashbackBalance:   &zero,
		RedemptionOptions: []RedemptionOption{},
		ExpiringPoints:    []ExpiryDetail{},
		Degraded:          true,
	}
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Fingerprint is the coarse summary used to key generated responses.
func (c *RewardContext) Fingerprint() string {
	if c == nil || c.TotalPoints == nil {
		return "-"
	}
	return strconv.FormatInt(*c.TotalPoints, 10)
}
