package extraction

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cardlens/backend/internal/analytics"
	"github.com/cardlens/backend/internal/model"
	"github.com/cardlens/backend/internal/security"
)

// Format is a sniffed upload format.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatCSV     Format = "csv"
	FormatOFX     Format = "ofx"
	FormatImage   Format = "image"
	FormatText    Format = "text"
	FormatUnknown Format = "unknown"
)

// SniffFormat determines the statement format from content, falling back to
// the filename extension.
func SniffFormat(filename string, data []byte) Format {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return FormatPDF
	}
	if bytes.HasPrefix(data, []byte("\x89PNG")) || bytes.HasPrefix(data, []byte("\xff\xd8\xff")) {
		return FormatImage
	}
	head := strings.ToUpper(string(data[:min(len(data), 512)]))
	if strings.Contains(head, "OFXHEADER") || strings.Contains(head, "<OFX>") {
		return FormatOFX
	}

	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return FormatPDF
	case strings.HasSuffix(lower, ".csv"):
		return FormatCSV
	case strings.HasSuffix(lower, ".ofx"), strings.HasSuffix(lower, ".qfx"):
		return FormatOFX
	}

	// A comma in the first line is the last resort for headerless exports.
	if idx := bytes.IndexByte(data, '\n'); idx > 0 && bytes.Contains(data[:idx], []byte(",")) {
		return FormatCSV
	}
	if len(data) > 0 && utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
		return FormatText
	}
	return FormatUnknown
}

// Service routes an uploaded statement through the right parser and
// normalizes the result.
type Service struct {
	text   *TextExtractor
	llm    *LLMExtractor
	csv    *CSVParser
	ofx    *OFXParser
	logger *slog.Logger
}

// NewService creates the extraction pipeline. llmExtractor may be nil when
// no model provider is configured; PDF extraction then relies on the
// rule-based parser alone.
func NewService(llmExtractor *LLMExtractor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		text:   &TextExtractor{},
		llm:    llmExtractor,
		csv:    &CSVParser{},
		ofx:    &OFXParser{},
		logger: logger.With("component", "extraction"),
	}
}

// Analyze extracts, validates and normalizes transactions from an uploaded
// statement file.
func (s *Service) Analyze(ctx context.Context, data []byte, filename, password string) ([]model.Transaction, error) {
	var raw []model.Transaction
	var err error

	format := SniffFormat(filename, data)
	switch format {
	case FormatPDF:
		raw, err = s.analyzePDF(ctx, data, password)
	case FormatCSV:
		raw, err = s.csv.Parse(data)
		var extErr *Error
		if errors.As(err, &extErr) && extErr.Code == ErrInvalidDocument && s.llm != nil {
			// Unmappable exports still carry the statement as text.
			s.logger.Debug("csv parse declined, trying model extraction", "reason", err)
			raw, err = s.analyzeText(ctx, data)
		}
	case FormatOFX:
		raw, err = s.ofx.Parse(data)
	case FormatImage:
		err = newError(ErrScannedDocument, detailScannedDocument, "sniff", false, nil)
	case FormatText:
		raw, err = s.analyzeText(ctx, data)
	default:
		err = newError(ErrInvalidDocument,
			"Unsupported file type. Upload a PDF, CSV or OFX statement.", "sniff", false, nil)
	}
	if err != nil {
		return nil, err
	}

	txs := ValidateTransactions(raw)
	if len(txs) == 0 {
		return nil, newError(ErrNoTransactionsFound, detailNoTransactions, string(format), false, nil)
	}

	recurring := analytics.DetectRecurring(txs)
	keys := make(map[string]bool, len(recurring))
	for _, r := range recurring {
		keys[r.NormalizedName] = true
	}
	MarkRecurring(txs, keys)

	s.logger.Info("statement analyzed",
		"format", format, "filename", filename, "transactions", len(txs))
	return txs, nil
}

// analyzePDF opens the document and tries the rule-based parser before
// falling back to the model rotation.
func (s *Service) analyzePDF(ctx context.Context, data []byte, password string) ([]model.Transaction, error) {
	analysis, err := OpenStatementPDF(data, password)
	if err != nil {
		return nil, err
	}

	if txs, textErr := s.text.ExtractFromText(analysis); textErr == nil {
		s.logger.Info("rule-based extraction succeeded", "transactions", len(txs))
		return txs, nil
	} else {
		s.logger.Debug("rule-based extraction declined", "reason", textErr)
	}

	if s.llm == nil {
		return nil, newError(ErrModelUnavailable,
			"No extraction model is configured.", "llm", false, nil)
	}
	// Mask card/account numbers and emails before the text leaves the
	// process.
	return s.llm.Extract(ctx, security.Scrub(analysis.PromptText()))
}

// analyzeText handles plain-text statements and CSV exports the native
// parser could not map: the raw text goes through the model rotation.
func (s *Service) analyzeText(ctx context.Context, data []byte) ([]model.Transaction, error) {
	if s.llm == nil {
		return nil, newError(ErrModelUnavailable,
			"No extraction model is configured.", "llm", false, nil)
	}
	text := string(data)
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	return s.llm.Extract(ctx, security.Scrub(text))
}
