package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xhad/hragent/pkg/cache"
	"github.com/xhad/hragent/pkg/config"
	"github.com/xhad/hragent/pkg/llm"
	"github.com/xhad/hragent/pkg/loader"
	"github.com/xhad/hragent/pkg/metrics"
	"github.com/xhad/hragent/pkg/processor"
	"github.com/xhad/hragent/pkg/scraper"
	"github.com/xhad/hragent/pkg/store"
)

// Build wires a Service from configuration: OpenAI chat and embeddings, the
// configured vector backend and the optional Redis answer cache.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.LLM.EmbeddingModel,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		BatchSize: cfg.Vector.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	vs, err := store.Open(ctx, cfg, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	answers, err := cache.New(cfg.Cache.RedisURL, cfg.Cache.TTL, logger.Named("cache"))
	if err != nil {
		vs.Close()
		return nil, fmt.Errorf("failed to initialize answer cache: %w", err)
	}

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})

	return NewWithConfig(ServiceConfig{
		Loader:      loader.New(logger.Named("loader")),
		Processor:   &proc,
		Embedder:    embedder,
		Chat:        chat,
		Store:       vs,
		Cache:       answers,
		Metrics:     metrics.New(),
		Logger:      logger.Named("rag"),
		DefaultPath: cfg.Server.FilePath,
		TopK:        cfg.Vector.TopK,
		Scraper: scraper.ScraperConfig{
			MaxDepth:       cfg.Scraper.MaxDepth,
			RateLimit:      cfg.Scraper.RateLimit,
			IgnorePatterns: cfg.Scraper.IgnorePatterns,
			Timeout:        cfg.Scraper.Timeout,
		},
	})
}
