package analytics

import (
	"time"

	"github.com/cardlens/backend/internal/model"
)

// TrendDirection summarizes the slope of the monthly spend series.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendFlat    TrendDirection = "flat"
)

// Trends reports how spending moves over the statement period.
type Trends struct {
	MonthlySeries  []Bucket       `json:"monthlySeries"`
	Slope          float64        `json:"slope"`
	RSquared       float64        `json:"rSquared"`
	Direction      TrendDirection `json:"direction"`
	WeekendSpend   float64        `json:"weekendSpend"`
	WeekdaySpend   float64        `json:"weekdaySpend"`
	WeekendPercent float64        `json:"weekendPercent"`
}

// flatSlopeEpsilon treats tiny monthly drifts as flat.
const flatSlopeEpsilon = 0.01

// ComputeTrends fits a regression line over monthly spend totals and splits
// spend between weekend and weekday days.
func ComputeTrends(txs []model.Transaction) Trends {
	monthly := ByMonth(txs)
	values := make([]float64, len(monthly))
	for i, b := range monthly {
		values[i] = b.Total
	}
	slope, rSquared := linearRegression(values)

	t := Trends{
		MonthlySeries: monthly,
		Slope:         round2(slope),
		RSquared:      round2(rSquared),
		Direction:     TrendFlat,
	}
	switch {
	case slope > flatSlopeEpsilon:
		t.Direction = TrendRising
	case slope < -flatSlopeEpsilon:
		t.Direction = TrendFalling
	}

	for _, tx := range txs {
		if tx.IsCredit() {
			continue
		}
		day := tx.Time()
		if day.IsZero() {
			continue
		}
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			t.WeekendSpend += tx.Amount
		} else {
			t.WeekdaySpend += tx.Amount
		}
	}
	t.WeekendSpend = round2(t.WeekendSpend)
	t.WeekdaySpend = round2(t.WeekdaySpend)
	if total := t.WeekendSpend + t.WeekdaySpend; total > 0 {
		t.WeekendPercent = round2(t.WeekendSpend / total * 100)
	}
	return t
}

// linearRegression computes slope and R-squared for a series of y-values
// where x = 0, 1, 2, ... (the index).
func linearRegression(points []float64) (slope, rSquared float64) {
	n := float64(len(points))
	if n < 2 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range points {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	meanY := sumY / n
	var ssRes, ssTot float64
	for i, y := range points {
		predicted := slope*float64(i) + intercept
		ssRes += (y - predicted) * (y - predicted)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, 1
	}
	rSquared = 1 - ssRes/ssTot
	return slope, rSquared
}
