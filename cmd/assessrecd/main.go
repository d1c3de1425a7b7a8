package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hirewise/assessrec/internal/catalog"
	"github.com/hirewise/assessrec/internal/config"
	"github.com/hirewise/assessrec/internal/embedder"
	"github.com/hirewise/assessrec/internal/extractor"
	"github.com/hirewise/assessrec/internal/llm"
	"github.com/hirewise/assessrec/internal/reranker"
	"github.com/hirewise/assessrec/internal/server"
	"github.com/hirewise/assessrec/internal/service"
	"github.com/hirewise/assessrec/internal/vectorindex"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting assessment recommendation service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Catalog source: the crawler's Postgres sink when configured, the
	// JSON file otherwise.
	var source service.CatalogSource
	if cfg.DatabaseURL != "" {
		pg, err := catalog.NewPostgresSource(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to catalog database: %w", err)
		}
		defer pg.Close()
		source = pg
		slog.Info("catalog source: postgres")
	} else {
		source = catalog.FileSource{Path: cfg.CatalogFile}
		slog.Info("catalog source: file", "path", cfg.CatalogFile)
	}

	// Ollama capability clients
	emb := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:     cfg.OllamaURL,
		Model:       cfg.OllamaEmbeddingModel,
		CallTimeout: cfg.CapabilityTimeout,
		MaxAttempts: cfg.CapabilityRetries,
	})
	slog.Info("initialized Ollama embedder", "model", cfg.OllamaEmbeddingModel)

	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
		llm.WithCallTimeout(cfg.CapabilityTimeout),
		llm.WithMaxAttempts(cfg.CapabilityRetries),
	)
	slog.Info("initialized Ollama LLM", "model", cfg.OllamaLLMModel)

	ext := extractor.New(llmClient, extractor.WithModel(cfg.OllamaLLMModel))
	rr := reranker.NewLLMReranker(llmClient,
		reranker.WithModel(cfg.OllamaLLMModel),
		reranker.WithLogger(slog.Default()),
	)

	// Service
	svcOpts := []service.Option{service.WithLogger(slog.Default())}
	if cfg.QdrantGRPCURL != "" {
		qdrantIndex, err := vectorindex.NewQdrantIndex(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
		if err != nil {
			return fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		defer qdrantIndex.Close()
		svcOpts = append(svcOpts, service.WithQdrant(qdrantIndex))
		slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)
	}

	svc := service.NewRecommendService(service.Config{
		BM25K1:          cfg.BM25K1,
		BM25B:           cfg.BM25B,
		FusionAlpha:     cfg.FusionAlpha,
		RetrieverTopK:   cfg.RetrieverTopK,
		RerankTopK:      cfg.RerankTopK,
		MaxResults:      cfg.MaxResults,
		RequestDeadline: cfg.RequestDeadline,
		CacheSize:       cfg.CacheSize,
		CacheTTL:        cfg.CacheTTL,
	}, source, emb, ext, rr, svcOpts...)

	if err := svc.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	slog.Info("catalog loaded", "items", svc.Snapshot().Len())

	// HTTP server
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, svc)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
