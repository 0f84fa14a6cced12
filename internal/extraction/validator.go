package extraction

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cardlens/backend/internal/model"
	"github.com/cardlens/backend/internal/security"
)

// maxPlausibleAmount drops obviously corrupt rows such as concatenated
// digits parsed as one number.
const maxPlausibleAmount = 1_000_000

// ValidateTransactions filters and normalizes raw extracted transactions:
// rows with unparseable dates, empty merchants, zero or implausible amounts
// are dropped, merchant text is scrubbed of account numbers, categories are
// canonicalized, IDs assigned, and the result sorted by date.
func ValidateTransactions(raw []model.Transaction) []model.Transaction {
	out := make([]model.Transaction, 0, len(raw))
	for _, tx := range raw {
		tx.Merchant = strings.TrimSpace(tx.Merchant)
		tx.Date = strings.TrimSpace(tx.Date)

		if tx.Merchant == "" {
			continue
		}
		if tx.Amount == 0 || math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
			continue
		}
		if math.Abs(tx.Amount) > maxPlausibleAmount {
			continue
		}
		if _, err := time.Parse(model.DateLayout, tx.Date); err != nil {
			// Some models return D/M/Y despite instructions; reparse once.
			t := parseFlexibleDate(tx.Date, time.Now().Year())
			if t.IsZero() {
				continue
			}
			tx.Date = t.Format(model.DateLayout)
		}

		if !tx.Category.Valid() {
			tx.Category = model.ParseCategory(string(tx.Category))
		}
		tx.Amount = math.Round(tx.Amount*100) / 100
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		out = append(out, tx)
	}

	security.ScrubTransactions(out)
	model.SortByDate(out)
	return out
}

// MarkRecurring sets IsRecurring on transactions whose canonical merchant
// was classified as a recurring charge.
func MarkRecurring(txs []model.Transaction, recurringKeys map[string]bool) {
	for i := range txs {
		if recurringKeys[model.MerchantKey(txs[i].Merchant)] {
			txs[i].IsRecurring = true
		}
	}
}
