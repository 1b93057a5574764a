package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Query validation ---

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name       string
		query      Query
		wantFields []string
	}{
		{
			name:  "valid",
			query: Query{Text: "How many points do I have?", CustomerID: "c1"},
		},
		{
			name:       "blank text",
			query:      Query{Text: "   ", CustomerID: "c1"},
			wantFields: []string{"query"},
		},
		{
			name:       "too long",
			query:      Query{Text: strings.Repeat("a", MaxQueryLength+1), CustomerID: "c1"},
			wantFields: []string{"query"},
		},
		{
			name:  "exactly max length",
			query: Query{Text: strings.Repeat("é", MaxQueryLength), CustomerID: "c1"},
		},
		{
			name:       "missing customer",
			query:      Query{Text: "points?"},
			wantFields: []string{"customerId"},
		},
		{
			name:       "bad actor",
			query:      Query{Text: "points?", CustomerID: "c1", Actor: "ROBOT"},
			wantFields: []string{"userType"},
		},
		{
			name:       "everything wrong",
			query:      Query{},
			wantFields: []string{"query", "customerId"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"query":      "Query cannot be empty",
		"customerId": "Customer ID is required",
	}}
	assert.Equal(t,
		"invalid request: customerId: Customer ID is required, query: Query cannot be empty",
		err.Error())
}

func TestParseActorType(t *testing.T) {
	a, err := ParseActorType("")
	require.NoError(t, err)
	assert.Equal(t, ActorCustomer, a)

	a, err = ParseActorType(" agent ")
	require.NoError(t, err)
	assert.Equal(t, ActorAgent, a)

	_, err = ParseActorType("admin")
	assert.Error(t, err)
}

// --- RewardContext ---

func TestDegradedContext(t *testing.T) {
	rc := DegradedContext()
	require.NotNil(t, rc.TotalPoints)
	require.NotNil(t, rc.AvailablePoints)
	require.NotNil(t, rc.ExpiredPoints)
	require.NotNil(t, rc.CashbackBalance)
	assert.Equal(t, int64(0), *rc.TotalPoints)
	assert.Equal(t, int64(0), *rc.AvailablePoints)
	assert.Equal(t, int64(0), *rc.ExpiredPoints)
	assert.True(t, rc.CashbackBalance.IsZero())
	assert.NotNil(t, rc.RedemptionOptions)
	assert.Empty(t, rc.RedemptionOptions)
	assert.NotNil(t, rc.ExpiringPoints)
	assert.Empty(t, rc.ExpiringPoints)
	assert.True(t, rc.Degraded)
}

func TestRewardContextJSONKeepsAbsentAndEmptyApart(t *testing.T) {
	rc := &RewardContext{
		TotalPoints:       Int64(7000),
		RedemptionOptions: []RedemptionOption{},
	}

	data, err := json.Marshal(rc)
	require.NoError(t, err)

	var back RewardContext
	require.NoError(t, json.Unmarshal(data, &back))

	assert.NotNil(t, back.RedemptionOptions, "requested-but-empty must survive a round trip")
	assert.Empty(t, back.RedemptionOptions)
	assert.Nil(t, back.ExpiringPoints, "not-fetched must stay nil")
	assert.Nil(t, back.CashbackBalance)
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2026, time.March, 5)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-05"`, string(data))

	var parsed Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-05T10:00:00Z"`), &parsed))
	assert.True(t, d.Equal(parsed.Time))

	var empty Date
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())
}

func TestFingerprint(t *testing.T) {
	var nilCtx *RewardContext
	assert.Equal(t, "-", nilCtx.Fingerprint())
	assert.Equal(t, "-", (&RewardContext{}).Fingerprint())

	cash := decimal.RequireFromString("12.50")
	rc := &RewardContext{TotalPoints: Int64(5000), CashbackBalance: &cash}
	assert.Equal(t, "5000", rc.Fingerprint())
}
