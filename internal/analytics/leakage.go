package analytics

import (
	"sort"
	"strings"

	"github.com/cardlens/backend/internal/model"
)

// LeakageKind labels the class of avoidable cost a charge represents.
type LeakageKind string

const (
	LeakageFee       LeakageKind = "fee"
	LeakageInterest  LeakageKind = "interest"
	LeakageForex     LeakageKind = "forex"
	LeakageSurcharge LeakageKind = "surcharge"
	LeakagePenalty   LeakageKind = "penalty"
)

// LeakageItem is a single charge flagged as money lost to the card issuer
// or payment rail rather than spent on goods or services.
type LeakageItem struct {
	Transaction model.Transaction `json:"transaction"`
	Kind        LeakageKind       `json:"kind"`
	Keyword     string            `json:"keyword"`
}

// LeakageReport totals flagged charges for the statement period.
type LeakageReport struct {
	Total   float64            `json:"total"`
	ByKind  map[string]float64 `json:"byKind"`
	Items   []LeakageItem      `json:"items"`
	Percent float64            `json:"percentOfSpend"`
}

// Ordered most-specific first so "late payment fee" classifies as a
// penalty, not a generic fee.
var leakageKeywords = []struct {
	keyword string
	kind    LeakageKind
}{
	{"late payment", LeakagePenalty},
	{"overlimit", LeakagePenalty},
	{"over limit", LeakagePenalty},
	{"annual fee", LeakageFee},
	{"finance charge", LeakageInterest},
	{"interest", LeakageInterest},
	{"forex", LeakageForex},
	{"foreign exchange", LeakageForex},
	{"fx markup", LeakageForex},
	{"markup", LeakageForex},
	{"intl txn", LeakageForex},
	{"surcharge", LeakageSurcharge},
	{"fuel surcharge", LeakageSurcharge},
	{"convenience fee", LeakageFee},
	{"processing fee", LeakageFee},
	{"service charge", LeakageFee},
	{"fee", LeakageFee},
}

// DetectLeakage scans merchant descriptions for fee, interest, and
// surcharge language and totals the matches against overall spend.
func DetectLeakage(txs []model.Transaction) LeakageReport {
	report := LeakageReport{ByKind: make(map[string]float64)}
	var totalSpend float64

	for _, tx := range txs {
		if tx.IsCredit() {
			continue
		}
		totalSpend += tx.Amount

		lower := strings.ToLower(tx.Merchant)
		for _, entry := range leakageKeywords {
			if !strings.Contains(lower, entry.keyword) {
				continue
			}
			report.Items = append(report.Items, LeakageItem{
				Transaction: tx,
				Kind:        entry.kind,
				Keyword:     entry.keyword,
			})
			report.Total += tx.Amount
			report.ByKind[string(entry.kind)] += tx.Amount
			break
		}
	}

	report.Total = round2(report.Total)
	for kind, amount := range report.ByKind {
		report.ByKind[kind] = round2(amount)
	}
	if totalSpend > 0 {
		report.Percent = round2(report.Total / totalSpend * 100)
	}
	sort.Slice(report.Items, func(i, j int) bool {
		return report.Items[i].Transaction.Amount > report.Items[j].Transaction.Amount
	})
	return report
}
