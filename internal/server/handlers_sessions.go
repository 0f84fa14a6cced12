package server

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cardlens/backend/internal/extraction"
	"github.com/cardlens/backend/internal/model"
	"github.com/cardlens/backend/internal/store"
)

type createSessionRequest struct {
	Label        string              `json:"label"`
	Transactions []model.Transaction `json:"transactions"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", "INVALID_REQUEST")
		return
	}

	session := &model.Session{Label: req.Label}
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		s.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not create session", "STORE_ERROR")
		return
	}

	if len(req.Transactions) > 0 {
		txs := extraction.ValidateTransactions(req.Transactions)
		if err := s.store.ReplaceTransactions(r.Context(), session.ID, txs); err != nil {
			s.logger.Error("failed to store transactions", "session", session.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Could not store transactions", "STORE_ERROR")
			return
		}
		session.TxCount = len(txs)
	}

	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	sessions, nextToken, err := s.store.ListSessions(r.Context(), pageSize, r.URL.Query().Get("pageToken"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page token", "INVALID_REQUEST")
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":      sessions,
		"nextPageToken": nextToken,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	filter := store.TransactionFilter{
		StartDate: q.Get("start"),
		EndDate:   q.Get("end"),
		Category:  model.Category(q.Get("category")),
		PageSize:  pageSize,
		PageToken: q.Get("pageToken"),
	}

	txs, nextToken, err := s.store.ListTransactions(r.Context(), r.PathValue("id"), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions":  txs,
		"nextPageToken": nextToken,
	})
}

// handleExportCSV streams a session's transactions as an RFC 4180 CSV
// attachment.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	txs, _, err := s.store.ListTransactions(r.Context(), sessionID, store.TransactionFilter{})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	filename := "transactions.csv"
	if session.Label != "" {
		filename = sanitizeCSVFilename(session.Label) + ".csv"
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "date", "merchant", "amount", "category", "isRecurring"})
	for _, tx := range txs {
		cw.Write([]string{
			tx.ID,
			tx.Date,
			tx.Merchant,
			strconv.FormatFloat(tx.Amount, 'f', 2, 64),
			tx.Category.String(),
			strconv.FormatBool(tx.IsRecurring),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		// Headers are already sent; the truncated export can only be logged.
		s.logger.Error("csv export write failed", "session", sessionID, "error", err)
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found", "NOT_FOUND")
		return
	}
	s.logger.Error("store operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Storage operation failed", "STORE_ERROR")
}

func sanitizeCSVFilename(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "transactions"
	}
	return string(out)
}
