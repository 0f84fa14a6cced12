package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cardlens/backend/internal/extraction"
)

// errorResponse is the wire shape for every error the API returns.
type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail, code string) {
	writeJSON(w, status, errorResponse{Detail: detail, Code: code})
}

// writeExtractionError maps the pipeline error taxonomy onto HTTP statuses.
// Document problems the user can fix are 400s; rate limiting and an
// exhausted model rotation are 429; the rest are server-side failures.
func writeExtractionError(w http.ResponseWriter, err error) {
	var extErr *extraction.Error
	if !errors.As(err, &extErr) {
		writeError(w, http.StatusInternalServerError, "Analysis failed. Please try again later.", string(extraction.ErrAllModelsFailed))
		return
	}

	status := http.StatusInternalServerError
	switch extErr.Code {
	case extraction.ErrEncryptedPDF,
		extraction.ErrIncorrectPassword,
		extraction.ErrScannedDocument,
		extraction.ErrInvalidDocument,
		extraction.ErrNoTransactionsFound:
		status = http.StatusBadRequest
	case extraction.ErrModelRateLimited,
		extraction.ErrAllModelsFailed:
		status = http.StatusTooManyRequests
	}
	writeError(w, status, extErr.Message, string(extErr.Code))
}
