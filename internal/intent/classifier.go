// Package intent maps free-text reward questions onto a small fixed set of
// intent tags using keyword matching.
package intent

import (
	"regexp"
	"strings"
)

// Intent is a category of reward information a query asks about.
type Intent string

const (
	Balance        Intent = "BALANCE"
	Redeem         Intent = "REDEEM"
	Expiry         Intent = "EXPIRY"
	Cashback       Intent = "CASHBACK"
	SpecificAmount Intent = "SPECIFIC_AMOUNT"
	// General is returned alone when nothing else matched.
	General Intent = "GENERAL"
)

// order is the canonical position of each tag inside a Set.
var order = []Intent{Balance, Redeem, Expiry, Cashback, SpecificAmount, General}

var keywords = []struct {
	intent Intent
	words  []string
}{
	{Balance, []string{"balance", "points", "have", "total", "many", "much", "current"}},
	{Redeem, []string{"redeem", "spend", "use", "get", "buy", "purchase", "exchange", "options", "available"}},
	{Expiry, []string{"expire", "expiry", "expiring", "when", "deadline", "valid", "until"}},
	{Cashback, []string{"cashback", "cash", "money", "dollars", "refund"}},
}

var digits = regexp.MustCompile(`\d+`)

// Classify returns the intents found in text. The result is never empty.
func Classify(text string) Set {
	normalized := strings.ToLower(strings.TrimSpace(text))

	var found []Intent
	for _, group := range keywords {
		for _, w := range group.words {
			if strings.Contains(normalized, w) {
				found = append(found, group.intent)
				break
			}
		}
	}
	if digits.MatchString(normalized) {
		found = append(found, SpecificAmount)
	}

	if len(found) == 0 {
		return NewSet(General)
	}
	return NewSet(found...)
}
