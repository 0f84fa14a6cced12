package analytics

import (
	"sort"

	"github.com/cardlens/backend/internal/model"
)

// AnomalySeverity grades how far an outlier sits from the distribution.
type AnomalySeverity string

const (
	SeverityLow    AnomalySeverity = "low"
	SeverityMedium AnomalySeverity = "medium"
	SeverityHigh   AnomalySeverity = "high"
)

// Anomaly flags a spend transaction whose amount is an outlier.
type Anomaly struct {
	Transaction model.Transaction `json:"transaction"`
	ZScore      float64           `json:"zScore"`
	Expected    float64           `json:"expected"`
	Threshold   float64           `json:"threshold"`
	Severity    AnomalySeverity   `json:"severity"`
	Reason      string            `json:"reason"`
}

// OutlierOptions tunes DetectOutliers. The zero value is not usable; use
// DefaultOutlierOptions as the baseline.
type OutlierOptions struct {
	// SigmaK is the number of standard deviations above the mean beyond
	// which a spend amount is flagged.
	SigmaK float64
	// AbsoluteFloor flags any single spend at or above this amount
	// regardless of the distribution. Zero disables the floor.
	AbsoluteFloor float64
	// MinSamples is the minimum number of spend transactions required
	// before distribution-based flagging kicks in.
	MinSamples int
}

// DefaultOutlierOptions matches the dashboard's strictest detector.
func DefaultOutlierOptions() OutlierOptions {
	return OutlierOptions{SigmaK: 2, AbsoluteFloor: 10000, MinSamples: 4}
}

// DetectOutliers flags spend transactions at or beyond mean + k*sigma
// (population standard deviation) or at/above the absolute floor. Credits
// never flag.
func DetectOutliers(txs []model.Transaction, opts OutlierOptions) []Anomaly {
	amounts := spendAmounts(txs)
	mean, stddev := meanStddev(amounts)
	threshold := mean + opts.SigmaK*stddev

	var anomalies []Anomaly
	for _, tx := range txs {
		if tx.IsCredit() {
			continue
		}

		flaggedBySigma := len(amounts) >= opts.MinSamples && stddev > 0 && tx.Amount >= threshold
		flaggedByFloor := opts.AbsoluteFloor > 0 && tx.Amount >= opts.AbsoluteFloor
		if !flaggedBySigma && !flaggedByFloor {
			continue
		}

		var z float64
		if stddev > 0 {
			z = (tx.Amount - mean) / stddev
		}

		reason := "amount exceeds statistical threshold"
		if flaggedByFloor && !flaggedBySigma {
			reason = "amount exceeds absolute floor"
		}

		anomalies = append(anomalies, Anomaly{
			Transaction: tx,
			ZScore:      round2(z),
			Expected:    round2(mean),
			Threshold:   round2(threshold),
			Severity:    severityForZ(z),
			Reason:      reason,
		})
	}

	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].Transaction.Amount > anomalies[j].Transaction.Amount
	})
	return anomalies
}

func severityForZ(z float64) AnomalySeverity {
	switch {
	case z > 3.0:
		return SeverityHigh
	case z > 2.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
