package synth

import (
	"fmt"
	"slices"
	"strings"

	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/intent"
)

const (
	unavailableMessage = "I'm sorry, I'm having trouble accessing your reward information right now. " +
		"Please contact customer support for assistance."
	supportClosing = "For specific redemption options and detailed information, please contact customer support."
)

// Fallback builds a templated answer from the data already in rc. It only
// mentions fields that are present and never returns an empty string.
func Fallback(rc *domain.RewardContext, intents intent.Set) string {
	if rc == nil || rc.Degraded {
		return unavailableMessage
	}

	var parts []string

	switch {
	case rc.AvailablePoints != nil:
		parts = append(parts, fmt.Sprintf("You currently have %s reward points available.", FormatPoints(*rc.AvailablePoints)))
	case rc.TotalPoints != nil:
		parts = append(parts, fmt.Sprintf("You currently have %s reward points.", FormatPoints(*rc.TotalPoints)))
	}

	if intents.Has(intent.Cashback) && rc.CashbackBalance != nil {
		parts = append(parts, fmt.Sprintf("Your cashback balance is %s.", FormatMoney(*rc.CashbackBalance, rc.CashbackCurrency)))
	}

	if intents.Has(intent.Expiry) {
		if s := expirySentence(rc); s != "" {
			parts = append(parts, s)
		}
	}

	if intents.Has(intent.Redeem) && rc.RedemptionOptions != nil {
		parts = append(parts, redemptionSentence(rc.RedemptionOptions))
	}

	if len(parts) == 0 {
		return unavailableMessage
	}
	parts = append(parts, supportClosing)
	return strings.Join(parts, " ")
}

func expirySentence(rc *domain.RewardContext) string {
	if len(rc.ExpiringPoints) > 0 {
		lots := slices.Clone(rc.ExpiringPoints)
		slices.SortFunc(lots, func(a, b domain.ExpiryDetail) int {
			return a.ExpiryDate.Compare(b.ExpiryDate.Time)
		})
		return fmt.Sprintf("%s points expire on %s.", FormatPoints(lots[0].Points), formatDate(lots[0].ExpiryDate))
	}
	if rc.NextExpiryDate != nil {
		return fmt.Sprintf("Your next points expiry date is %s.", formatDate(*rc.NextExpiryDate))
	}
	if rc.ExpiringPoints != nil {
		return "You have no points expiring soon."
	}
	return ""
}

func redemptionSentence(opts []domain.RedemptionOption) string {
	var available []domain.RedemptionOption
	for _, o := range opts {
		if o.Available {
			available = append(available, o)
		}
	}
	switch len(available) {
	case 0:
		return "No redemption options are available right now."
	case 1:
		return fmt.Sprintf("You can redeem %s for %s points.", available[0].Name, FormatPoints(available[0].PointsRequired))
	default:
		return fmt.Sprintf("You have %d redemption options, including %s for %s points.",
			len(available), available[0].Name, FormatPoints(available[0].PointsRequired))
	}
}
