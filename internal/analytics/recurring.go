package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/cardlens/backend/internal/model"
)

// Cadence names the billing rhythm of a recurring charge.
type Cadence string

const (
	CadenceWeekly      Cadence = "weekly"
	CadenceFortnightly Cadence = "fortnightly"
	CadenceMonthly     Cadence = "monthly"
	CadenceQuarterly   Cadence = "quarterly"
	CadenceYearly      Cadence = "yearly"
)

// RecurringCharge is a merchant the detector believes bills on a schedule.
type RecurringCharge struct {
	Merchant       string         `json:"merchant"`
	NormalizedName string         `json:"normalizedName"`
	Category       model.Category `json:"category"`
	Cadence        Cadence        `json:"cadence"`
	AverageAmount  float64        `json:"averageAmount"`
	AnnualizedCost float64        `json:"annualizedCost"`
	Occurrences    int            `json:"occurrences"`
	Confidence     float64        `json:"confidence"`
	LastSeen       string         `json:"lastSeen"`
	NextExpected   string         `json:"nextExpected"`
	TransactionIDs []string       `json:"transactionIds"`
}

// maxAmountCV is the coefficient of variation above which a merchant's
// amounts are too noisy to call a subscription.
const maxAmountCV = 0.15

// minRecurringConfidence drops weak pattern matches.
const minRecurringConfidence = 0.5

// DetectRecurring groups spend by canonical merchant key and looks for
// stable cadences between consecutive charges. A merchant qualifies with
// at least two occurrences, an average interval inside a cadence band,
// and consistent amounts.
func DetectRecurring(txs []model.Transaction) []RecurringCharge {
	groups := make(map[string][]model.Transaction)
	display := make(map[string]string)
	for _, tx := range txs {
		if tx.IsCredit() || tx.Time().IsZero() {
			continue
		}
		key := model.MerchantKey(tx.Merchant)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], tx)
		if _, ok := display[key]; !ok {
			display[key] = tx.Merchant
		}
	}

	var results []RecurringCharge
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		model.SortByDate(members)

		var intervals []float64
		for i := 1; i < len(members); i++ {
			days := members[i].Time().Sub(members[i-1].Time()).Hours() / 24
			if days > 0 {
				intervals = append(intervals, days)
			}
		}
		if len(intervals) == 0 {
			continue
		}

		cadence, cadenceConfidence := detectCadence(intervals)
		if cadence == "" {
			continue
		}

		var amounts []float64
		var total float64
		for _, tx := range members {
			amounts = append(amounts, tx.Amount)
			total += tx.Amount
		}
		avgAmount := total / float64(len(amounts))
		if avgAmount <= 0 {
			continue
		}
		cv := math.Sqrt(sampleVariance(amounts, avgAmount)) / avgAmount
		if cv >= maxAmountCV {
			continue
		}
		amountConfidence := 1.0
		if cv > 0.10 {
			amountConfidence = 0.7
		}

		occurrenceBoost := math.Min(float64(len(members))/5.0, 1.0)
		confidence := cadenceConfidence * amountConfidence * (0.5 + 0.5*occurrenceBoost)
		if confidence < minRecurringConfidence {
			continue
		}

		last := members[len(members)-1]
		var ids []string
		for _, tx := range members {
			ids = append(ids, tx.ID)
		}

		results = append(results, RecurringCharge{
			Merchant:       display[key],
			NormalizedName: key,
			Category:       mostCommonCategory(members),
			Cadence:        cadence,
			AverageAmount:  round2(avgAmount),
			AnnualizedCost: round2(avgAmount * chargesPerYear(cadence)),
			Occurrences:    len(members),
			Confidence:     round2(confidence),
			LastSeen:       last.Date,
			NextExpected:   nextExpectedDate(last.Time(), cadence).Format(model.DateLayout),
			TransactionIDs: ids,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].NormalizedName < results[j].NormalizedName
	})
	return results
}

type cadenceBand struct {
	cadence  Cadence
	min, max float64
}

var cadenceBands = []cadenceBand{
	{CadenceWeekly, 5, 9},
	{CadenceFortnightly, 12, 16},
	{CadenceMonthly, 27, 34},
	{CadenceQuarterly, 85, 95},
	{CadenceYearly, 355, 375},
}

// detectCadence matches the average interval against the cadence bands and
// scores confidence as the fraction of individual intervals inside the band.
func detectCadence(intervals []float64) (Cadence, float64) {
	var avg float64
	for _, d := range intervals {
		avg += d
	}
	avg /= float64(len(intervals))

	for _, band := range cadenceBands {
		if avg < band.min || avg > band.max {
			continue
		}
		matched := 0
		for _, d := range intervals {
			if d >= band.min && d <= band.max {
				matched++
			}
		}
		return band.cadence, float64(matched) / float64(len(intervals))
	}
	return "", 0
}

func sampleVariance(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(values)-1)
}

func nextExpectedDate(last time.Time, cadence Cadence) time.Time {
	switch cadence {
	case CadenceWeekly:
		return last.AddDate(0, 0, 7)
	case CadenceFortnightly:
		return last.AddDate(0, 0, 14)
	case CadenceQuarterly:
		return addMonthsClamped(last, 3)
	case CadenceYearly:
		return addMonthsClamped(last, 12)
	default:
		return addMonthsClamped(last, 1)
	}
}

// addMonthsClamped advances by whole months, clamping the day to the target
// month's length. AddDate would normalize Jan 31 + 1 month to Mar 2.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if lastDay := first.AddDate(0, 1, -1).Day(); day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}

func chargesPerYear(cadence Cadence) float64 {
	switch cadence {
	case CadenceWeekly:
		return 52
	case CadenceFortnightly:
		return 26
	case CadenceQuarterly:
		return 4
	case CadenceYearly:
		return 1
	default:
		return 12
	}
}

func mostCommonCategory(txs []model.Transaction) model.Category {
	counts := make(map[model.Category]int)
	for _, tx := range txs {
		counts[tx.Category]++
	}
	best := model.CategoryOther
	maxCount := 0
	for cat, count := range counts {
		if count > maxCount {
			maxCount = count
			best = cat
		}
	}
	return best
}
