package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cardlens/backend/internal/extraction"
	"github.com/cardlens/backend/internal/model"
	"github.com/cardlens/backend/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAnalyze accepts a multipart statement upload and returns extracted
// transactions. With async=true it returns a job instead; poll
// /analyze/jobs/{id} for the result.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Uploaded file is too large", "FILE_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "Request must be multipart/form-data with a file field", "INVALID_REQUEST")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded", "INVALID_REQUEST")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read uploaded file", "INVALID_REQUEST")
		return
	}

	filename := header.Filename
	password := r.FormValue("password")
	label := r.FormValue("session_label")

	if r.FormValue("async") == "true" {
		job := s.jobs.Create(filename)
		go s.runAnalyzeJob(job.ID, data, filename, password, label)
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.analyzeTimeout)
	defer cancel()

	txs, err := s.extractor.Analyze(ctx, data, filename, password)
	if err != nil {
		writeExtractionError(w, err)
		return
	}

	if label != "" {
		sessionID, err := s.persistAnalysis(ctx, label, filename, data, txs)
		if err != nil {
			s.logger.Error("failed to persist analysis", "error", err)
		} else {
			w.Header().Set("X-Session-Id", sessionID)
			w.Header().Set("Location", "/api/sessions/"+sessionID)
		}
	}

	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleAnalyzeJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found", "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) runAnalyzeJob(jobID string, data []byte, filename, password, label string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.analyzeTimeout)
	defer cancel()

	s.jobs.SetRunning(jobID)

	txs, err := s.extractor.Analyze(ctx, data, filename, password)
	if err != nil {
		s.jobs.Fail(jobID, err)
		return
	}

	if label != "" {
		if _, err := s.persistAnalysis(ctx, label, filename, data, txs); err != nil {
			s.logger.Error("failed to persist analysis", "job", jobID, "error", err)
		}
	}
	s.jobs.Complete(jobID, txs)
}

// persistAnalysis creates a session for an analyzed statement and archives
// the raw upload. Archive failures are logged, not fatal.
func (s *Server) persistAnalysis(ctx context.Context, label, filename string, data []byte, txs []model.Transaction) (string, error) {
	session := &model.Session{
		Label:       label,
		SourceFiles: []string{filename},
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", err
	}
	if err := s.store.ReplaceTransactions(ctx, session.ID, txs); err != nil {
		return "", err
	}

	if _, err := s.archiver.Save(ctx, session.ID, filename, data); err != nil {
		s.logger.Warn("failed to archive statement", "session", session.ID, "error", err)
	}
	return session.ID, nil
}

// resolveTransactions loads the transaction set an analytics-style request
// refers to: a stored session or an inline list. Inline transactions go
// through the same validation as extracted ones.
func (s *Server) resolveTransactions(ctx context.Context, sessionID string, inline []model.Transaction) ([]model.Transaction, int, error) {
	if sessionID != "" {
		txs, _, err := s.store.ListTransactions(ctx, sessionID, store.TransactionFilter{})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, http.StatusNotFound, errors.New("session not found")
			}
			return nil, http.StatusInternalServerError, err
		}
		return txs, 0, nil
	}
	if len(inline) == 0 {
		return nil, http.StatusBadRequest, errors.New("request must include sessionId or transactions")
	}
	return extraction.ValidateTransactions(inline), 0, nil
}
