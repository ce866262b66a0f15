package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pharmassist/pharmassist/internal/api"
	"github.com/pharmassist/pharmassist/internal/config"
	"github.com/pharmassist/pharmassist/internal/db"
	"github.com/pharmassist/pharmassist/internal/knowledge"
	"github.com/pharmassist/pharmassist/internal/llm"
	"github.com/pharmassist/pharmassist/internal/openfda"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	for _, p := range []string{cfg.ConversationsDB, cfg.KnowledgeDB} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Fatal("failed to create data directory",
					zap.String("dir", dir), zap.Error(err))
			}
		}
	}

	store, err := db.New(cfg.ConversationsDB, logger)
	if err != nil {
		logger.Fatal("failed to open conversation store",
			zap.Error(err),
			zap.String("dbPath", cfg.ConversationsDB))
	}

	embedder := selectEmbedder(cfg, logger)
	index, err := knowledge.New(cfg.KnowledgeDB, embedder, logger)
	if err != nil {
		logger.Fatal("failed to open knowledge index",
			zap.Error(err),
			zap.String("dbPath", cfg.KnowledgeDB))
	}

	resolver := openfda.New(openfda.DefaultBaseURL, logger)

	llmService, err := llm.New(cfg.XAIAPIURL, cfg.XAIAPIKey, cfg.XAIModel, resolver, store, index, logger)
	if err != nil {
		logger.Fatal("failed to initialize LLM service", zap.Error(err))
	}

	handler := api.NewHandler(store, llmService, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", handler.HandleChat)
	mux.HandleFunc("/api/history", handler.HandleHistory)
	mux.HandleFunc("/api/health", handler.HandleHealth)
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.CORSOrigins},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(mux)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("model", cfg.XAIModel))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
	if err := multierr.Append(store.Close(), index.Close()); err != nil {
		logger.Warn("store close error", zap.Error(err))
	}
}

// selectEmbedder picks the embedding backend: the remote API when a key is
// configured, otherwise the deterministic local fallback.
func selectEmbedder(cfg *config.Config, logger *zap.Logger) knowledge.Embedder {
	if cfg.OpenAIAPIKey == "" {
		logger.Info("no embedding API key configured, using local fallback embedder")
		return knowledge.NewLocalEmbedder()
	}
	embedder, err := knowledge.NewRemoteEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	if err != nil {
		logger.Warn("failed to initialize remote embedder, using local fallback", zap.Error(err))
		return knowledge.NewLocalEmbedder()
	}
	logger.Info("using remote embedder", zap.String("model", cfg.EmbeddingModel))
	return embedder
}
