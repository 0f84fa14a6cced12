// Package model defines the wire-level data contract shared by extraction,
// analytics, storage, and the HTTP surface.
package model

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical transaction date format. Dates in this layout
// sort lexicographically, which the bucketing code relies on.
const DateLayout = "2006-01-02"

// Transaction is a single statement line item. Amount sign carries the
// debit/credit convention: positive amounts are spend, negative amounts are
// payments, refunds, or other credits.
type Transaction struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Merchant    string   `json:"merchant"`
	Amount      float64  `json:"amount"`
	Category    Category `json:"category"`
	IsRecurring bool     `json:"isRecurring,omitempty"`
}

// Time parses the transaction date. A zero time is returned for malformed
// dates; validated transactions never hit that path.
func (t Transaction) Time() time.Time {
	parsed, err := time.Parse(DateLayout, t.Date)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// MonthKey returns the YYYY-MM bucket for the transaction date.
func (t Transaction) MonthKey() string {
	if len(t.Date) < 7 {
		return t.Date
	}
	return t.Date[:7]
}

// IsCredit reports whether the transaction is a payment or refund.
func (t Transaction) IsCredit() bool {
	return t.Amount < 0
}

var (
	railPrefixRe = regexp.MustCompile(`(?i)^(pos |eftpos |visa |mastercard |amex |paypal \*|sq \*)`)
	trailingRefRe = regexp.MustCompile(`[\s*#]*\d{4,}\s*$`)
	squeezeRe     = regexp.MustCompile(`\s{2,}`)
)

// MerchantKey canonicalizes a merchant name for grouping. Two statement
// spellings of the same merchant ("UBER *TRIP 2452", "Uber Trip") collapse
// onto one key; display names keep their original casing elsewhere.
func MerchantKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = railPrefixRe.ReplaceAllString(key, "")
	key = trailingRefRe.ReplaceAllString(key, "")
	key = strings.Map(func(r rune) rune {
		switch r {
		case '*', '#', '.', ',':
			return ' '
		}
		return r
	}, key)
	key = squeezeRe.ReplaceAllString(key, " ")
	return strings.TrimSpace(key)
}

// SortByDate orders transactions by date ascending, stable for equal dates.
// Dates are ISO strings, so byte comparison is chronological.
func SortByDate(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date < txs[j].Date
	})
}
