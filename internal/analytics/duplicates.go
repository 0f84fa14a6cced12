package analytics

import (
	"fmt"
	"sort"

	"github.com/cardlens/backend/internal/model"
)

// duplicateWindowDays is the default maximum gap between two charges of the
// same merchant and amount for them to count as a potential duplicate billing.
const duplicateWindowDays = 2

// DuplicateOptions tunes DetectDuplicates.
type DuplicateOptions struct {
	// WindowDays is the maximum gap in days between consecutive charges
	// of a cluster. Zero or negative falls back to the default.
	WindowDays int
}

// DefaultDuplicateOptions matches the dashboard's duplicate detector.
func DefaultDuplicateOptions() DuplicateOptions {
	return DuplicateOptions{WindowDays: duplicateWindowDays}
}

// DuplicateAlert groups charges that look like the same payment billed
// more than once. One alert is emitted per group, never per pair.
type DuplicateAlert struct {
	Merchant     string              `json:"merchant"`
	Amount       float64             `json:"amount"`
	Count        int                 `json:"count"`
	Total        float64             `json:"total"`
	Transactions []model.Transaction `json:"transactions"`
}

// DetectDuplicates finds groups of spend transactions sharing a canonical
// merchant key and exact amount, where consecutive occurrences fall within
// the duplicate window. Transactions with unparseable dates are skipped.
func DetectDuplicates(txs []model.Transaction, opts DuplicateOptions) []DuplicateAlert {
	window := float64(opts.WindowDays)
	if window <= 0 {
		window = duplicateWindowDays
	}

	type groupKey struct {
		merchant string
		amount   float64
	}
	groups := make(map[groupKey][]model.Transaction)
	display := make(map[groupKey]string)

	for _, tx := range txs {
		if tx.IsCredit() || tx.Time().IsZero() {
			continue
		}
		key := groupKey{model.MerchantKey(tx.Merchant), tx.Amount}
		if key.merchant == "" {
			continue
		}
		groups[key] = append(groups[key], tx)
		if _, ok := display[key]; !ok {
			display[key] = tx.Merchant
		}
	}

	var alerts []DuplicateAlert
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		model.SortByDate(members)

		// Walk the sorted occurrences and split into clusters where
		// each member is within the window of the previous one.
		cluster := []model.Transaction{members[0]}
		flush := func() {
			if len(cluster) < 2 {
				return
			}
			alert := DuplicateAlert{
				Merchant:     display[key],
				Amount:       key.amount,
				Count:        len(cluster),
				Total:        round2(key.amount * float64(len(cluster))),
				Transactions: append([]model.Transaction(nil), cluster...),
			}
			alerts = append(alerts, alert)
		}
		for i := 1; i < len(members); i++ {
			gap := members[i].Time().Sub(members[i-1].Time()).Hours() / 24
			if gap <= window {
				cluster = append(cluster, members[i])
				continue
			}
			flush()
			cluster = []model.Transaction{members[i]}
		}
		flush()
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Total != alerts[j].Total {
			return alerts[i].Total > alerts[j].Total
		}
		return fmt.Sprint(alerts[i].Merchant, alerts[i].Amount) < fmt.Sprint(alerts[j].Merchant, alerts[j].Amount)
	})
	return alerts
}
