package extraction

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	maxTextBytes     = 100 * 1024 // cap for extracted text
	maxPromptChars   = 30000      // statement text sent to a model is truncated here
	scannedThreshold = 50         // chars per page below which the PDF is considered scanned
	textDenseMin     = 200        // chars per page for "dense text" classification
)

// PDFAnalysis contains the results of opening and pre-processing a statement PDF.
type PDFAnalysis struct {
	PageCount        int
	ExtractedText    string
	TextLines        []string
	EstimatedTxCount int
	IsScanned        bool
	WasEncrypted     bool
}

// datePattern matches date-like tokens in statement lines.
// Covers: DD/MM/YYYY, DD-MM-YYYY, DD.MM.YYYY, YYYY-MM-DD, "Jan 15", "15 Jan".
var datePattern = regexp.MustCompile(
	`(?i)` +
		`(?:\d{1,2}[/\-\.]\d{1,2}[/\-\.]\d{2,4})` +
		`|(?:\d{4}[/\-]\d{2}[/\-]\d{2})` +
		`|(?:(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2})` +
		`|(?:\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?)`,
)

var amountPattern = regexp.MustCompile(
	`[\$\-]?\d{1,3}(?:[,]\d{3})*(?:\.\d{1,2})` +
		`|\d+\.\d{2}`,
)

// OpenStatementPDF decrypts (if needed) and extracts text from a statement
// PDF. Password variants are tried in order: as given, trimmed, trimmed and
// uppercased. It never panics even on malformed input.
func OpenStatementPDF(data []byte, password string) (result *PDFAnalysis, err error) {
	result = &PDFAnalysis{PageCount: 1, IsScanned: true}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("recovered from pdf parser panic", "panic", r)
			result = nil
			err = newError(ErrInvalidDocument, "Invalid PDF file.", "pdf",
				false, fmt.Errorf("panic during PDF analysis: %v", r))
		}
	}()

	passwords := passwordLadder(password)
	attempt := 0
	reader, openErr := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), func() string {
		if attempt >= len(passwords) {
			return ""
		}
		pw := passwords[attempt]
		attempt++
		if attempt > 1 || pw != "" {
			result.WasEncrypted = true
		}
		return pw
	})
	if openErr != nil {
		if errors.Is(openErr, pdf.ErrInvalidPassword) {
			if strings.TrimSpace(password) == "" {
				return nil, newError(ErrEncryptedPDF, detailEncryptedPDF, "pdf", false, openErr)
			}
			return nil, newError(ErrIncorrectPassword, detailIncorrectPassword, "pdf", false, openErr)
		}
		return nil, newError(ErrInvalidDocument, "Invalid PDF file.", "pdf", false, openErr)
	}

	result.PageCount = reader.NumPage()
	if result.PageCount < 1 {
		result.PageCount = 1
	}

	plainText, textErr := reader.GetPlainText()
	if textErr != nil {
		return nil, newError(ErrScannedDocument, detailScannedDocument, "pdf", false, textErr)
	}
	textBytes, readErr := io.ReadAll(io.LimitReader(plainText, int64(maxTextBytes)))
	if readErr != nil {
		return nil, newError(ErrScannedDocument, detailScannedDocument, "pdf", false, readErr)
	}

	result.ExtractedText = string(textBytes)
	result.IsScanned = isLikelyScanned(result.ExtractedText, result.PageCount)
	if result.IsScanned {
		return nil, newError(ErrScannedDocument, detailScannedDocument, "pdf", false, nil)
	}

	for _, line := range strings.Split(result.ExtractedText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			result.TextLines = append(result.TextLines, trimmed)
		}
	}
	result.EstimatedTxCount = countTransactionLines(result.TextLines)

	return result, nil
}

// passwordLadder returns the password variants to try, deduplicated in order.
func passwordLadder(password string) []string {
	trimmed := strings.TrimSpace(password)
	candidates := []string{password, trimmed, strings.ToUpper(trimmed)}

	var ladder []string
	seen := make(map[string]bool)
	for _, pw := range candidates {
		if seen[pw] {
			continue
		}
		seen[pw] = true
		ladder = append(ladder, pw)
	}
	return ladder
}

// PromptText returns the extracted text bounded to the model prompt budget.
func (a *PDFAnalysis) PromptText() string {
	if len(a.ExtractedText) > maxPromptChars {
		return a.ExtractedText[:maxPromptChars]
	}
	return a.ExtractedText
}

// countTransactionLines counts lines that look like financial transactions
// (contain both a date-like pattern and a monetary amount).
func countTransactionLines(lines []string) int {
	count := 0
	for _, line := range lines {
		if datePattern.MatchString(line) && amountPattern.MatchString(line) {
			count++
		}
	}
	return count
}

// isLikelyScanned returns true if the PDF appears to be a scanned image
// (very little extractable text per page).
func isLikelyScanned(text string, pages int) bool {
	if pages <= 0 {
		pages = 1
	}
	charsPerPage := len(text) / pages
	return charsPerPage < scannedThreshold
}
