package extraction

import (
	"testing"

	"github.com/cardlens/backend/internal/model"
)

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		name          string
		rawMerchant   string
		wantName      string
		wantCategory  model.Category
		minConfidence float64
	}{
		{
			name:          "Woolworths grocery store",
			rawMerchant:   "WOOLWORTHS 1234 SYDNEY",
			wantName:      "Woolworths",
			wantCategory:  model.CategoryFood,
			minConfidence: 0.9,
		},
		{
			name:          "McDonald's fast food",
			rawMerchant:   "MCDONALD'S #12345",
			wantName:      "McDonald's",
			wantCategory:  model.CategoryFood,
			minConfidence: 0.9,
		},
		{
			name:          "Uber rideshare",
			rawMerchant:   "UBER *TRIP",
			wantName:      "Uber",
			wantCategory:  model.CategoryTransport,
			minConfidence: 0.9,
		},
		{
			name:          "Netflix streaming",
			rawMerchant:   "NETFLIX.COM 123456789",
			wantName:      "Netflix",
			wantCategory:  model.CategoryEntertainment,
			minConfidence: 0.9,
		},
		{
			name:          "Amazon shopping",
			rawMerchant:   "AMAZON.COM*1234567",
			wantName:      "Amazon",
			wantCategory:  model.CategoryShopping,
			minConfidence: 0.9,
		},
		{
			name:          "Visa prefix removal",
			rawMerchant:   "VISA *STARBUCKS #123",
			wantName:      "Starbucks",
			wantCategory:  model.CategoryFood,
			minConfidence: 0.9,
		},
		{
			name:          "Generic restaurant keyword",
			rawMerchant:   "SOME RANDOM RESTAURANT",
			wantCategory:  model.CategoryFood,
			minConfidence: 0.5,
		},
		{
			name:          "Generic pharmacy keyword",
			rawMerchant:   "LOCAL PHARMACY",
			wantCategory:  model.CategoryHealth,
			minConfidence: 0.5,
		},
		{
			name:          "Unknown merchant",
			rawMerchant:   "XYZABC PTY LTD",
			wantCategory:  model.CategoryOther,
			minConfidence: 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NormalizeMerchant(tt.rawMerchant)
			if tt.wantName != "" && info.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", info.Name, tt.wantName)
			}
			if info.Category != tt.wantCategory {
				t.Errorf("Category = %v, want %v", info.Category, tt.wantCategory)
			}
			if info.Confidence < tt.minConfidence {
				t.Errorf("Confidence = %.2f, want >= %.2f", info.Confidence, tt.minConfidence)
			}
		})
	}
}

func TestFormatMerchantName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"CITY PARKING 123456789", "City Parking"},
		{"bp connect", "BP Connect"},
		{"POS SOME CAFE", "Some Cafe"},
	}
	for _, tt := range tests {
		if got := formatMerchantName(tt.raw); got != tt.want {
			t.Errorf("formatMerchantName(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
