package server

import (
	"encoding/json"
	"net/http"

	"github.com/cardlens/backend/internal/insights"
	"github.com/cardlens/backend/internal/model"
)

type insightsRequest struct {
	SessionID    string              `json:"sessionId"`
	Transactions []model.Transaction `json:"transactions"`
}

type chatRequest struct {
	SessionID    string                 `json:"sessionId"`
	Transactions []model.Transaction    `json:"transactions"`
	Message      string                 `json:"message"`
	History      []insights.ChatMessage `json:"history"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", "INVALID_REQUEST")
		return
	}

	txs, status, err := s.resolveTransactions(r.Context(), req.SessionID, req.Transactions)
	if err != nil {
		writeResolveError(w, s, status, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"insights": s.insights.Narrative(r.Context(), txs),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", "INVALID_REQUEST")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required", "INVALID_REQUEST")
		return
	}

	txs, status, err := s.resolveTransactions(r.Context(), req.SessionID, req.Transactions)
	if err != nil {
		writeResolveError(w, s, status, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"reply": s.insights.Chat(r.Context(), txs, req.Message, req.History),
	})
}

func writeResolveError(w http.ResponseWriter, s *Server, status int, err error) {
	if status == http.StatusInternalServerError {
		s.logger.Error("failed to resolve transactions", "error", err)
		writeError(w, status, "Storage operation failed", "STORE_ERROR")
		return
	}
	code := "INVALID_REQUEST"
	if status == http.StatusNotFound {
		code = "NOT_FOUND"
	}
	writeError(w, status, err.Error(), code)
}
