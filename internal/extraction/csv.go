package extraction

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/cardlens/backend/internal/model"
)

// CSVParser imports transaction exports in CSV form. Header names are
// matched case-insensitively against common bank export spellings.
type CSVParser struct{}

// header aliases accepted for each field
var (
	csvDateHeaders     = []string{"date", "transaction date", "posted date", "txn date"}
	csvMerchantHeaders = []string{"merchant", "description", "narration", "details", "name", "payee"}
	csvAmountHeaders   = []string{"amount", "transaction amount", "value"}
	csvDebitHeaders    = []string{"debit", "withdrawal", "money out"}
	csvCreditHeaders   = []string{"credit", "deposit", "money in"}
	csvCategoryHeaders = []string{"category", "type"}
)

// Parse reads CSV statement data into transactions. Rows that fail to
// parse are skipped rather than failing the whole import.
func (p *CSVParser) Parse(data []byte) ([]model.Transaction, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, newError(ErrInvalidDocument, "Could not parse CSV file.", "csv", false, err)
	}

	cols := mapColumns(header)
	if cols.date < 0 || cols.merchant < 0 || (cols.amount < 0 && cols.debit < 0) {
		return nil, newError(ErrInvalidDocument,
			"CSV is missing required columns (date, merchant, amount).", "csv", false, nil)
	}

	currentYear := time.Now().Year()
	var txs []model.Transaction
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		get := func(idx int) string {
			if idx < 0 || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		date := parseFlexibleDate(get(cols.date), currentYear)
		if date.IsZero() {
			continue
		}
		merchant := get(cols.merchant)
		if merchant == "" {
			continue
		}

		amount, ok := p.rowAmount(get, cols)
		if !ok || amount == 0 {
			continue
		}

		category := model.ParseCategory(get(cols.category))
		if category == model.CategoryOther && get(cols.category) == "" {
			category = NormalizeMerchant(merchant).Category
		}

		txs = append(txs, model.Transaction{
			Date:     date.Format(model.DateLayout),
			Merchant: merchant,
			Amount:   amount,
			Category: category,
		})
	}

	if len(txs) == 0 {
		return nil, newError(ErrNoTransactionsFound, detailNoTransactions, "csv", false, nil)
	}
	return txs, nil
}

type csvColumns struct {
	date, merchant, amount, debit, credit, category int
}

func mapColumns(header []string) csvColumns {
	cols := csvColumns{date: -1, merchant: -1, amount: -1, debit: -1, credit: -1, category: -1}
	match := func(name string, aliases []string) bool {
		for _, alias := range aliases {
			if name == alias {
				return true
			}
		}
		return false
	}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case cols.date < 0 && match(name, csvDateHeaders):
			cols.date = i
		case cols.merchant < 0 && match(name, csvMerchantHeaders):
			cols.merchant = i
		case cols.amount < 0 && match(name, csvAmountHeaders):
			cols.amount = i
		case cols.debit < 0 && match(name, csvDebitHeaders):
			cols.debit = i
		case cols.credit < 0 && match(name, csvCreditHeaders):
			cols.credit = i
		case cols.category < 0 && match(name, csvCategoryHeaders):
			cols.category = i
		}
	}
	return cols
}

// rowAmount resolves the signed amount for a row: a single amount column
// wins, otherwise separate debit/credit columns are combined.
func (p *CSVParser) rowAmount(get func(int) string, cols csvColumns) (float64, bool) {
	if cols.amount >= 0 {
		if raw := get(cols.amount); raw != "" {
			amount, isDebit := parseAmount(raw)
			if amount == 0 {
				return 0, false
			}
			if !isDebit {
				amount = -amount
			}
			return amount, true
		}
	}
	if raw := get(cols.debit); raw != "" {
		amount, _ := parseAmount(raw)
		return amount, amount != 0
	}
	if raw := get(cols.credit); raw != "" {
		amount, _ := parseAmount(raw)
		return -amount, amount != 0
	}
	return 0, false
}
