// Package insights turns computed analytics into natural-language output:
// a narrative "financial story" and a chat assistant grounded in the same
// numbers. Model failures collapse to a canned Markdown fallback so the
// HTTP surface never fails over an LLM outage.
package insights

import (
	"fmt"
	"strings"

	"github.com/cardlens/backend/internal/analytics"
	"github.com/cardlens/backend/internal/model"
)

// maxContextMerchants bounds the merchant list handed to the model.
const maxContextMerchants = 10

// BuildContext renders a compact KPI block for prompting. It is plain text,
// not JSON: smaller, and models follow it at least as well.
func BuildContext(txs []model.Transaction) string {
	summary := analytics.Summarize(txs)
	categories := analytics.ByCategory(txs)
	merchants := analytics.ByMerchant(txs)
	recurring := analytics.DetectRecurring(txs)
	leakage := analytics.DetectLeakage(txs)
	trends := analytics.ComputeTrends(txs)

	var b strings.Builder
	fmt.Fprintf(&b, "Statement period: %s to %s\n", summary.StartDate, summary.EndDate)
	fmt.Fprintf(&b, "Total spend: %.2f across %d transactions (%d distinct merchants)\n",
		summary.TotalSpend, summary.SpendCount, summary.DistinctMerchants)
	if summary.TotalCredits > 0 {
		fmt.Fprintf(&b, "Credits/refunds: %.2f\n", summary.TotalCredits)
	}
	fmt.Fprintf(&b, "Average transaction: %.2f, largest: %.2f\n",
		summary.AvgTransaction, summary.MaxTransaction)

	if len(categories) > 0 {
		b.WriteString("\nSpend by category:\n")
		for _, c := range categories {
			fmt.Fprintf(&b, "- %s: %.2f (%.1f%%)\n", c.Key, c.Total, c.Percent)
		}
	}

	if len(merchants) > 0 {
		b.WriteString("\nTop merchants:\n")
		for i, m := range merchants {
			if i >= maxContextMerchants {
				break
			}
			fmt.Fprintf(&b, "- %s: %.2f over %d transactions\n", m.Key, m.Total, m.Count)
		}
	}

	if len(recurring) > 0 {
		b.WriteString("\nRecurring charges:\n")
		for _, r := range recurring {
			fmt.Fprintf(&b, "- %s: %.2f %s (annualized %.2f)\n",
				r.Merchant, r.AverageAmount, r.Cadence, r.AnnualizedCost)
		}
	}

	if leakage.Total > 0 {
		fmt.Fprintf(&b, "\nFees and charges: %.2f (%.1f%% of spend)\n",
			leakage.Total, leakage.Percent)
		for kind, total := range leakage.ByKind {
			fmt.Fprintf(&b, "- %s: %.2f\n", kind, total)
		}
	}

	if trends.Direction != "" {
		fmt.Fprintf(&b, "\nMonthly trend: %s", trends.Direction)
		if trends.WeekendPercent > 0 {
			fmt.Fprintf(&b, "; %.1f%% of spend happens on weekends", trends.WeekendPercent)
		}
		b.WriteString("\n")
	}

	return b.String()
}
