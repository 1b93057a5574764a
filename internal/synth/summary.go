package synth

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/soyeahso/rewardbot/internal/domain"
)

const displayDateLayout = "Jan 02, 2006"

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatPoints renders a point count with thousands separators ("5,000").
func FormatPoints(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatMoney renders an amount with two decimals, prefixed with "$" for USD.
func FormatMoney(amount decimal.Decimal, currency string) string {
	s := amount.StringFixed(2)
	if currency == "" || strings.EqualFold(currency, "USD") {
		return "$" + s
	}
	return s + " " + strings.ToUpper(currency)
}

func formatDate(d domain.Date) string {
	return d.Format(displayDateLayout)
}

// BuildContextSummary renders the fields present in rc as a plain-text block.
// Absent fields are omitted.
func BuildContextSummary(rc *domain.RewardContext) string {
	var b strings.Builder
	b.WriteString("REWARD INFORMATION:\n")
	if rc == nil {
		b.WriteString("No reward information is available.\n")
		return b.String()
	}
	if rc.Degraded {
		b.WriteString("Note: live reward data is temporarily unavailable; figures below may be incomplete.\n")
	}

	if rc.TotalPoints != nil {
		fmt.Fprintf(&b, "Total Points: %s\n", FormatPoints(*rc.TotalPoints))
	}
	if rc.AvailablePoints != nil {
		fmt.Fprintf(&b, "Available Points: %s\n", FormatPoints(*rc.AvailablePoints))
	}
	if rc.ExpiredPoints != nil {
		fmt.Fprintf(&b, "Expired Points: %s\n", FormatPoints(*rc.ExpiredPoints))
	}
	if rc.CashbackBalance != nil {
		fmt.Fprintf(&b, "Cashback Balance: %s\n", FormatMoney(*rc.CashbackBalance, rc.CashbackCurrency))
	}
	if rc.NextExpiryDate != nil {
		fmt.Fprintf(&b, "Next Expiry Date: %s\n", formatDate(*rc.NextExpiryDate))
	}

	if rc.RedemptionOptions != nil {
		b.WriteString("\nREDEMPTION OPTIONS:\n")
		if len(rc.RedemptionOptions) == 0 {
			b.WriteString("- none available\n")
		}
		for _, opt := range rc.RedemptionOptions {
			fmt.Fprintf(&b, "- %s: %s points", opt.Name, FormatPoints(opt.PointsRequired))
			if opt.CashValue != nil {
				fmt.Fprintf(&b, " (Value: %s)", FormatMoney(*opt.CashValue, ""))
			}
			if !opt.Available {
				b.WriteString(" [currently unavailable]")
			}
			b.WriteString("\n")
		}
	}

	if rc.ExpiringPoints != nil {
		b.WriteString("\nEXPIRING POINTS:\n")
		if len(rc.ExpiringPoints) == 0 {
			b.WriteString("- none\n")
		}
		for _, lot := range rc.ExpiringPoints {
			fmt.Fprintf(&b, "- %s points expiring on %s\n", FormatPoints(lot.Points), formatDate(lot.ExpiryDate))
		}
	}

	return b.String()
}

// BuildUserPrompt combines the actor type, context summary and query into the
// user-role message sent to the generation provider.
func BuildUserPrompt(query, summary string, actor domain.ActorType) string {
	if actor == "" {
		actor = domain.ActorCustomer
	}
	return fmt.Sprintf("User Type: %s\n\n%s\n\nUser Query: %s\n\n"+
		"Please provide a helpful, friendly response based on the reward information above.",
		actor, strings.TrimRight(summary, "\n"), query)
}
