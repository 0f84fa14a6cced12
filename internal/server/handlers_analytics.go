package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cardlens/backend/internal/analytics"
	"github.com/cardlens/backend/internal/model"
)

type analyticsRequest struct {
	SessionID    string              `json:"sessionId"`
	Transactions []model.Transaction `json:"transactions"`
}

// handleAnalytics dispatches POST /api/analytics/{metric}. The body names a
// session or carries inline transactions; outlier thresholds are tunable via
// sigma and floor query parameters, the duplicate window via window.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var req analyticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", "INVALID_REQUEST")
		return
	}

	txs, status, err := s.resolveTransactions(r.Context(), req.SessionID, req.Transactions)
	if err != nil {
		writeResolveError(w, s, status, err)
		return
	}

	switch r.PathValue("metric") {
	case "summary":
		writeJSON(w, http.StatusOK, analytics.Summarize(txs))
	case "categories":
		writeJSON(w, http.StatusOK, analytics.ByCategory(txs))
	case "merchants":
		writeJSON(w, http.StatusOK, analytics.ByMerchant(txs))
	case "timeline":
		writeJSON(w, http.StatusOK, analytics.ByMonth(txs))
	case "calendar":
		writeJSON(w, http.StatusOK, map[string]any{
			"dayOfWeek":  analytics.ByDayOfWeek(txs),
			"monthPhase": analytics.ByMonthPhase(txs),
		})
	case "anomalies":
		writeJSON(w, http.StatusOK, analytics.DetectOutliers(txs, outlierOptions(r)))
	case "duplicates":
		writeJSON(w, http.StatusOK, analytics.DetectDuplicates(txs, duplicateOptions(r)))
	case "recurring":
		writeJSON(w, http.StatusOK, analytics.DetectRecurring(txs))
	case "leakage":
		writeJSON(w, http.StatusOK, analytics.DetectLeakage(txs))
	case "trends":
		writeJSON(w, http.StatusOK, analytics.ComputeTrends(txs))
	default:
		writeError(w, http.StatusNotFound, "Unknown analytics metric", "NOT_FOUND")
	}
}

func outlierOptions(r *http.Request) analytics.OutlierOptions {
	opts := analytics.DefaultOutlierOptions()
	q := r.URL.Query()
	if sigma, err := strconv.ParseFloat(q.Get("sigma"), 64); err == nil && sigma > 0 {
		opts.SigmaK = sigma
	}
	if floor, err := strconv.ParseFloat(q.Get("floor"), 64); err == nil && floor > 0 {
		opts.AbsoluteFloor = floor
	}
	return opts
}

func duplicateOptions(r *http.Request) analytics.DuplicateOptions {
	opts := analytics.DefaultDuplicateOptions()
	if window, err := strconv.Atoi(r.URL.Query().Get("window")); err == nil && window > 0 {
		opts.WindowDays = window
	}
	return opts
}
