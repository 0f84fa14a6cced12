package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	gcsstorage "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/cardlens/backend/internal/archive"
	"github.com/cardlens/backend/internal/config"
	"github.com/cardlens/backend/internal/extraction"
	"github.com/cardlens/backend/internal/insights"
	"github.com/cardlens/backend/internal/llm"
	"github.com/cardlens/backend/internal/server"
	"github.com/cardlens/backend/internal/store"
)

func main() {
	// Load .env for local development; absent in production images.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	st, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	archiver := buildArchiver(ctx, cfg, logger)
	extractor := extraction.NewService(buildExtractor(cfg, logger), logger)
	generator := buildInsights(cfg, logger)

	jobs := extraction.NewJobStore(30 * time.Minute)
	defer jobs.Stop()

	srv := server.New(server.Options{
		Store:          st,
		Extractor:      extractor,
		Jobs:           jobs,
		Insights:       generator,
		Archiver:       archiver,
		Logger:         logger,
		APIToken:       cfg.APIToken,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AnalyzeTimeout: cfg.AnalyzeTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        h2c.NewHandler(srv.Handler(), &http2.Server{}),
		ReadTimeout:    cfg.AnalyzeTimeout + 10*time.Second,
		WriteTimeout:   cfg.AnalyzeTimeout + 10*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "store", cfg.StoreBackend)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	<-shutdownDone
	logger.Info("server stopped gracefully")
}

func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		logger.Info("using sqlite store", "path", cfg.SQLiteDBPath)
		return store.NewSQLiteStore(cfg.SQLiteDBPath)
	case config.BackendFirestore:
		logger.Info("using firestore store", "project", cfg.GoogleCloudProject)
		client, err := firestore.NewClient(ctx, cfg.GoogleCloudProject)
		if err != nil {
			return nil, err
		}
		return store.NewFirestoreStore(client), nil
	default:
		logger.Info("using in-memory store")
		return store.NewMemoryStore(), nil
	}
}

func buildArchiver(ctx context.Context, cfg *config.Config, logger *slog.Logger) archive.Archiver {
	if cfg.ArchiveBucket == "" {
		return archive.NoopArchiver{}
	}
	client, err := gcsstorage.NewClient(ctx)
	if err != nil {
		logger.Warn("statement archiving disabled", "error", err)
		return archive.NoopArchiver{}
	}
	logger.Info("archiving statements", "bucket", cfg.ArchiveBucket)
	return archive.NewGCSArchiver(client.Bucket(cfg.ArchiveBucket), logger)
}

// buildExtractor picks the first configured provider for statement
// extraction. Returns nil when none is configured; PDF analysis then runs
// rule-based only.
func buildExtractor(cfg *config.Config, logger *slog.Logger) *extraction.LLMExtractor {
	var client llm.Client
	switch {
	case cfg.OpenRouterAPIKey != "":
		client = llm.NewOpenRouter(cfg.OpenRouterAPIKey)
	case cfg.GroqAPIKey != "":
		client = llm.NewGroq(cfg.GroqAPIKey)
	case cfg.GeminiAPIKey != "":
		client = llm.NewGemini(cfg.GeminiAPIKey)
	default:
		logger.Warn("no model provider configured; PDF extraction is rule-based only")
		return nil
	}

	models := cfg.ExtractionModels
	if len(models) == 0 {
		models = extraction.DefaultExtractionModels
	}
	logger.Info("model extraction enabled", "provider", client.Name(), "models", len(models))
	return extraction.NewLLMExtractor(client, models, logger)
}

func buildInsights(cfg *config.Config, logger *slog.Logger) *insights.Generator {
	apiKey := cfg.InsightsAPIKey()
	if apiKey == "" {
		logger.Warn("no insights provider configured; insight endpoints serve the fallback")
		return nil
	}
	client, err := llm.New(cfg.InsightsProvider, apiKey)
	if err != nil {
		logger.Warn("insights disabled", "error", err)
		return nil
	}
	logger.Info("insights enabled", "provider", client.Name(), "model", cfg.InsightsModel)
	return insights.NewGenerator(client, cfg.InsightsModel, logger)
}
