package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cardlens/backend/internal/model"
)

const (
	minParseRate = 0.50 // must parse at least 50% of estimated lines
)

// TextExtractor provides rule-based transaction extraction from
// pre-extracted statement text. It is the cheap path tried before any
// hosted model.
type TextExtractor struct{}

// transactionLineRe matches a line with: date ... description ... amount
// Groups: (1) date, (2) description, (3) amount with optional sign/suffix.
var transactionLineRe = regexp.MustCompile(
	`(?i)` +
		// Date group - various formats
		`(\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4}|\d{4}[/\-]\d{2}[/\-]\d{2}|` +
		`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:[,\s]+\d{2,4})?|` +
		`\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?(?:[,\s]+\d{2,4})?)` +
		// Separator + description (non-greedy)
		`\s+(.+?)\s+` +
		// Amount (possibly negative or with $ or CR/DR suffix)
		`(-?\$?\d{1,3}(?:,\d{3})*\.\d{2})\s*(CR|DR)?$`,
)

// dateFormats to try when parsing extracted dates.
var dateFormats = []string{
	"02/01/2006", // DD/MM/YYYY
	"2/1/2006",   // D/M/YYYY
	"02-01-2006", // DD-MM-YYYY
	"02.01.2006", // DD.MM.YYYY
	"2006-01-02", // YYYY-MM-DD
	"2006/01/02", // YYYY/MM/DD
	"Jan 02 2006",
	"Jan 2 2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 02, 2006",
	"Jan 2, 2006",
	"02/01/06", // DD/MM/YY
	"2/1/06",   // D/M/YY
}

// ExtractFromText attempts rule-based transaction extraction from
// pre-analyzed statement text. It returns an error if extraction doesn't
// meet quality thresholds; the caller falls back to a hosted model.
func (te *TextExtractor) ExtractFromText(analysis *PDFAnalysis) ([]model.Transaction, error) {
	if analysis == nil || analysis.IsScanned {
		return nil, fmt.Errorf("cannot extract from scanned PDF")
	}

	if analysis.PageCount > 0 && len(analysis.ExtractedText)/analysis.PageCount < textDenseMin {
		return nil, fmt.Errorf("text density too low for rule-based extraction")
	}

	currentYear := time.Now().Year()
	var transactions []model.Transaction

	for _, line := range analysis.TextLines {
		matches := transactionLineRe.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		dateStr := strings.TrimSpace(matches[1])
		description := strings.TrimSpace(matches[2])
		amountStr := strings.TrimSpace(matches[3])
		suffix := strings.ToUpper(strings.TrimSpace(matches[4]))

		parsedDate := parseFlexibleDate(dateStr, currentYear)
		if parsedDate.IsZero() {
			continue
		}

		amount, isDebit := parseAmount(amountStr)
		if suffix == "CR" {
			isDebit = false
		}
		if amount <= 0 {
			continue
		}
		if !isDebit {
			amount = -amount
		}

		info := NormalizeMerchant(description)

		transactions = append(transactions, model.Transaction{
			Date:     parsedDate.Format(model.DateLayout),
			Merchant: info.Name,
			Amount:   amount,
			Category: info.Category,
		})
	}

	// Quality check: did we parse enough?
	if analysis.EstimatedTxCount > 0 {
		parseRate := float64(len(transactions)) / float64(analysis.EstimatedTxCount)
		if parseRate < minParseRate {
			return nil, fmt.Errorf("parse rate %.2f below threshold %.2f (%d/%d)",
				parseRate, minParseRate, len(transactions), analysis.EstimatedTxCount)
		}
	}

	if len(transactions) == 0 {
		return nil, fmt.Errorf("no transactions parsed from text")
	}

	return transactions, nil
}

// parseFlexibleDate tries multiple date formats. Formats without a year
// default to the current year.
func parseFlexibleDate(s string, defaultYear int) time.Time {
	s = strings.TrimSpace(s)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			if t.Year() < 100 {
				t = t.AddDate(2000, 0, 0)
			}
			return t
		}
	}
	// Month-day without year, e.g. "Jan 15" or "15 Jan"
	for _, format := range []string{"Jan 02", "Jan 2", "02 Jan", "2 Jan"} {
		if t, err := time.Parse(format, s); err == nil {
			return time.Date(defaultYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// parseAmount extracts a numeric amount from a string like "$1,234.56" or
// "-45.00". Returns the absolute amount and whether it's a debit.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)

	isDebit := true
	if strings.HasSuffix(strings.ToUpper(s), "CR") {
		isDebit = false
		s = strings.TrimSuffix(strings.TrimSuffix(s, "CR"), "cr")
		s = strings.TrimSpace(s)
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "-") {
		s = s[1:]
		// Negative on a card statement is a payment or refund
		isDebit = false
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return amount, isDebit
}
