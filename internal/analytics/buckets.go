package analytics

import (
	"sort"
	"time"

	"github.com/cardlens/backend/internal/model"
)

// Bucket is one group in an aggregation: a key, its spend total, the
// transaction count, and its share of total spend in percent.
type Bucket struct {
	Key     string  `json:"key"`
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// ByCategory groups spend by canonical category, sorted by total descending.
func ByCategory(txs []model.Transaction) []Bucket {
	return bucketize(txs, func(tx model.Transaction) string {
		return tx.Category.String()
	}, sortByTotal)
}

// ByMerchant groups spend by canonical merchant key. The bucket key is the
// first-seen display spelling of the merchant.
func ByMerchant(txs []model.Transaction) []Bucket {
	display := make(map[string]string)
	for _, tx := range txs {
		key := model.MerchantKey(tx.Merchant)
		if _, ok := display[key]; !ok {
			display[key] = tx.Merchant
		}
	}
	buckets := bucketize(txs, func(tx model.Transaction) string {
		return model.MerchantKey(tx.Merchant)
	}, sortByTotal)
	for i := range buckets {
		if name, ok := display[buckets[i].Key]; ok {
			buckets[i].Key = name
		}
	}
	return buckets
}

// ByMonth groups spend by YYYY-MM, sorted chronologically.
func ByMonth(txs []model.Transaction) []Bucket {
	return bucketize(txs, func(tx model.Transaction) string {
		return tx.MonthKey()
	}, sortByKey)
}

// ByDayOfWeek groups spend by weekday, ordered Monday..Sunday.
func ByDayOfWeek(txs []model.Transaction) []Bucket {
	buckets := bucketize(txs, func(tx model.Transaction) string {
		t := tx.Time()
		if t.IsZero() {
			return ""
		}
		return t.Weekday().String()
	}, nil)

	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	rank := make(map[string]int, len(order))
	for i, d := range order {
		rank[d.String()] = i
	}
	sort.Slice(buckets, func(i, j int) bool {
		return rank[buckets[i].Key] < rank[buckets[j].Key]
	})
	return buckets
}

// Month phases used by ByMonthPhase.
const (
	PhaseStart = "start" // days 1-10
	PhaseMid   = "mid"   // days 11-20
	PhaseEnd   = "end"   // days 21-31
)

// ByMonthPhase groups spend into start/mid/end-of-month phases.
func ByMonthPhase(txs []model.Transaction) []Bucket {
	buckets := bucketize(txs, func(tx model.Transaction) string {
		t := tx.Time()
		if t.IsZero() {
			return ""
		}
		switch {
		case t.Day() <= 10:
			return PhaseStart
		case t.Day() <= 20:
			return PhaseMid
		default:
			return PhaseEnd
		}
	}, nil)

	rank := map[string]int{PhaseStart: 0, PhaseMid: 1, PhaseEnd: 2}
	sort.Slice(buckets, func(i, j int) bool {
		return rank[buckets[i].Key] < rank[buckets[j].Key]
	})
	return buckets
}

type bucketSort func([]Bucket)

func sortByTotal(buckets []Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Total != buckets[j].Total {
			return buckets[i].Total > buckets[j].Total
		}
		return buckets[i].Key < buckets[j].Key
	})
}

func sortByKey(buckets []Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Key < buckets[j].Key
	})
}

// bucketize aggregates positive amounts by a derived key and computes each
// bucket's share of total spend. Transactions whose key derives to the empty
// string (malformed dates) are dropped.
func bucketize(txs []model.Transaction, keyFn func(model.Transaction) string, sorter bucketSort) []Bucket {
	totals := make(map[string]*Bucket)
	var spend float64

	for _, tx := range txs {
		if tx.IsCredit() {
			continue
		}
		key := keyFn(tx)
		if key == "" {
			continue
		}
		b, ok := totals[key]
		if !ok {
			b = &Bucket{Key: key}
			totals[key] = b
		}
		b.Total += tx.Amount
		b.Count++
		spend += tx.Amount
	}

	buckets := make([]Bucket, 0, len(totals))
	for _, b := range totals {
		b.Total = round2(b.Total)
		if spend > 0 {
			b.Percent = round2(b.Total / spend * 100)
		}
		buckets = append(buckets, *b)
	}
	if sorter != nil {
		sorter(buckets)
	}
	return buckets
}
