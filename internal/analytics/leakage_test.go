package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlens/backend/internal/model"
)

func TestDetectLeakage(t *testing.T) {
	txs := []model.Transaction{
		tx("2024-01-05", "ANNUAL FEE", 99.00, model.CategoryOther),
		tx("2024-01-10", "INTEREST CHARGE PURCHASES", 42.50, model.CategoryOther),
		tx("2024-01-12", "FOREX MARKUP INTL TXN", 8.75, model.CategoryOther),
		tx("2024-01-15", "LATE PAYMENT FEE", 35.00, model.CategoryOther),
		tx("2024-01-20", "Woolworths", 150.00, model.CategoryFood),
	}

	report := DetectLeakage(txs)
	require.Len(t, report.Items, 4)
	assert.InDelta(t, 185.25, report.Total, 0.001)
	assert.InDelta(t, 99.00, report.ByKind[string(LeakageFee)], 0.001)
	assert.InDelta(t, 42.50, report.ByKind[string(LeakageInterest)], 0.001)
	assert.InDelta(t, 8.75, report.ByKind[string(LeakageForex)], 0.001)
	assert.InDelta(t, 35.00, report.ByKind[string(LeakagePenalty)], 0.001)
	assert.InDelta(t, 185.25/335.25*100, report.Percent, 0.01)

	// Sorted by amount descending.
	assert.Equal(t, "ANNUAL FEE", report.Items[0].Transaction.Merchant)
}

func TestDetectLeakageSpecificKeywordWins(t *testing.T) {
	txs := []model.Transaction{
		tx("2024-01-15", "LATE PAYMENT FEE", 35.00, model.CategoryOther),
	}
	report := DetectLeakage(txs)
	require.Len(t, report.Items, 1)
	assert.Equal(t, LeakagePenalty, report.Items[0].Kind)
}

func TestDetectLeakageIgnoresCreditsAndCleanSpend(t *testing.T) {
	txs := []model.Transaction{
		tx("2024-01-05", "FEE REVERSAL", -35.00, model.CategoryOther),
		tx("2024-01-10", "Coffee Shop", 4.50, model.CategoryFood),
	}
	report := DetectLeakage(txs)
	assert.Empty(t, report.Items)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.Percent)
}
