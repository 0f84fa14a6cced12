// Package server exposes the statement analyzer over HTTP: upload and
// extraction, session persistence, the analytics endpoints, insights/chat,
// and CSV export.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/cardlens/backend/internal/archive"
	"github.com/cardlens/backend/internal/extraction"
	"github.com/cardlens/backend/internal/insights"
	"github.com/cardlens/backend/internal/store"
)

// Options wires the server's dependencies. Store, Extractor and Logger are
// required; the rest degrade gracefully when absent.
type Options struct {
	Store     store.Store
	Extractor *extraction.Service
	Jobs      *extraction.JobStore
	Insights  *insights.Generator
	Archiver  archive.Archiver
	Logger    *slog.Logger

	APIToken       string
	MaxUploadBytes int64
	AnalyzeTimeout time.Duration
	CORSOrigins    []string
}

type Server struct {
	store     store.Store
	extractor *extraction.Service
	jobs      *extraction.JobStore
	insights  *insights.Generator
	archiver  archive.Archiver
	logger    *slog.Logger

	apiTokenHash   string
	maxUploadBytes int64
	analyzeTimeout time.Duration
	corsOrigins    []string
}

func New(opts Options) *Server {
	s := &Server{
		store:          opts.Store,
		extractor:      opts.Extractor,
		jobs:           opts.Jobs,
		insights:       opts.Insights,
		archiver:       opts.Archiver,
		logger:         opts.Logger.With("component", "http"),
		maxUploadBytes: opts.MaxUploadBytes,
		analyzeTimeout: opts.AnalyzeTimeout,
		corsOrigins:    opts.CORSOrigins,
	}
	if opts.APIToken != "" {
		s.apiTokenHash = hashToken(opts.APIToken)
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = 15 << 20
	}
	if s.analyzeTimeout <= 0 {
		s.analyzeTimeout = 120 * time.Second
	}
	if s.archiver == nil {
		s.archiver = archive.NoopArchiver{}
	}
	if s.jobs == nil {
		s.jobs = extraction.NewJobStore(30 * time.Minute)
	}
	if s.insights == nil {
		// Keeps insight endpoints serving the fallback when no provider
		// is configured.
		s.insights = insights.NewGenerator(nil, "", opts.Logger)
	}
	return s
}

// Handler builds the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /analyze/jobs/{id}", s.handleAnalyzeJob)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/transactions", s.handleSessionTransactions)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.handleExportCSV)

	mux.HandleFunc("POST /api/analytics/{metric}", s.handleAnalytics)
	mux.HandleFunc("POST /api/insights", s.handleInsights)
	mux.HandleFunc("POST /api/chat", s.handleChat)

	var handler http.Handler = mux
	handler = s.requireToken(handler)
	handler = s.logRequests(handler)
	handler = s.corsMiddleware().Handler(handler)
	return handler
}

func (s *Server) corsMiddleware() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		AllowCredentials: true,
	})
}
