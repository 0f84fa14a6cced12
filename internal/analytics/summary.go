// Package analytics implements the transaction aggregation and signal
// detection pipeline: bucketing, outliers, duplicate charges, recurring
// payment inference, leakage scanning, and trend statistics. Every function
// is deterministic and side-effect free over an in-memory transaction slice.
package analytics

import (
	"math"

	"github.com/cardlens/backend/internal/model"
)

// Summary holds the headline KPIs for a transaction set.
type Summary struct {
	TotalSpend       float64        `json:"totalSpend"`
	TotalCredits     float64        `json:"totalCredits"`
	Net              float64        `json:"net"`
	Count            int            `json:"count"`
	SpendCount       int            `json:"spendCount"`
	AvgTransaction   float64        `json:"avgTransaction"`
	MaxTransaction   float64        `json:"maxTransaction"`
	DistinctMerchants int           `json:"distinctMerchants"`
	StartDate        string         `json:"startDate"`
	EndDate          string         `json:"endDate"`
	TopCategory      model.Category `json:"topCategory,omitempty"`
	TopMerchant      string         `json:"topMerchant,omitempty"`
}

// Summarize computes headline KPIs. Credits (negative amounts) contribute to
// TotalCredits and Net but are excluded from spend statistics.
func Summarize(txs []model.Transaction) Summary {
	var s Summary
	s.Count = len(txs)

	merchants := make(map[string]bool)
	catTotals := make(map[model.Category]float64)
	merchTotals := make(map[string]float64)
	merchDisplay := make(map[string]string)

	for _, tx := range txs {
		if tx.Date != "" {
			if s.StartDate == "" || tx.Date < s.StartDate {
				s.StartDate = tx.Date
			}
			if tx.Date > s.EndDate {
				s.EndDate = tx.Date
			}
		}
		key := model.MerchantKey(tx.Merchant)
		merchants[key] = true

		if tx.IsCredit() {
			s.TotalCredits += -tx.Amount
			continue
		}
		s.TotalSpend += tx.Amount
		s.SpendCount++
		if tx.Amount > s.MaxTransaction {
			s.MaxTransaction = tx.Amount
		}
		catTotals[tx.Category] += tx.Amount
		merchTotals[key] += tx.Amount
		if _, ok := merchDisplay[key]; !ok {
			merchDisplay[key] = tx.Merchant
		}
	}

	s.Net = s.TotalSpend - s.TotalCredits
	s.DistinctMerchants = len(merchants)
	if s.SpendCount > 0 {
		s.AvgTransaction = round2(s.TotalSpend / float64(s.SpendCount))
	}
	s.TotalSpend = round2(s.TotalSpend)
	s.TotalCredits = round2(s.TotalCredits)
	s.Net = round2(s.Net)

	var bestCat float64
	for cat, total := range catTotals {
		if total > bestCat {
			bestCat = total
			s.TopCategory = cat
		}
	}
	var bestMerch float64
	for key, total := range merchTotals {
		if total > bestMerch {
			bestMerch = total
			s.TopMerchant = merchDisplay[key]
		}
	}

	return s
}

// spendAmounts returns the positive amounts only.
func spendAmounts(txs []model.Transaction) []float64 {
	var amounts []float64
	for _, tx := range txs {
		if !tx.IsCredit() {
			amounts = append(amounts, tx.Amount)
		}
	}
	return amounts
}

// meanStddev computes the mean and population standard deviation.
func meanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var varianceSum float64
	for _, v := range values {
		diff := v - mean
		varianceSum += diff * diff
	}
	stddev = math.Sqrt(varianceSum / float64(len(values)))
	return mean, stddev
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
