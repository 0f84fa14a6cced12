// Package security provides PII redaction for statement text before it is
// handed to third-party model providers or echoed back in merchant fields.
package security

import (
	"regexp"

	"github.com/cardlens/backend/internal/model"
)

var (
	// 16-digit card numbers with optional separators, e.g. 4111-1111-1111-1234
	cardWithSepRe = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?(\d{4})\b`)
	// continuous 12-16 digit account numbers
	accountRe = regexp.MustCompile(`\b\d{8,12}(\d{4})\b`)
	emailRe   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// MaskAccountNumbers masks card and account numbers in text, keeping only
// the last four digits. Dates (2024-01-30) and decimal amounts (1234.56)
// are left intact: the patterns require at least 12 contiguous digits.
func MaskAccountNumbers(text string) string {
	text = cardWithSepRe.ReplaceAllString(text, "XXXX-XXXX-XXXX-$1")
	text = accountRe.ReplaceAllString(text, "XXXX-XXXX-$1")
	return text
}

// MaskEmails replaces email addresses with a redaction marker.
func MaskEmails(text string) string {
	return emailRe.ReplaceAllString(text, "[REDACTED_EMAIL]")
}

// Scrub applies all redaction passes to free text.
func Scrub(text string) string {
	return MaskEmails(MaskAccountNumbers(text))
}

// ScrubTransactions masks account numbers and emails that leaked into
// merchant names. The input slice is modified in place and returned for
// chaining.
func ScrubTransactions(txs []model.Transaction) []model.Transaction {
	for i := range txs {
		txs[i].Merchant = Scrub(txs[i].Merchant)
	}
	return txs
}
