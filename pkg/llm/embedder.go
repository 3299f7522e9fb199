package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/hragent/internal/models"
)

type EmbedderConfig struct {
	Model     string
	APIKey    string
	BaseURL   string // optional OpenAI-compatible endpoint
	BatchSize int
}

// Embedder turns chunks and questions into vectors.
type Embedder struct {
	Config   EmbedderConfig
	embedder embeddings.Embedder
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-ada-002"
	}

	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	return NewEmbedderWithClient(config, client)
}

// NewEmbedderWithClient wraps any embedding client, such as a local model.
func NewEmbedderWithClient(config EmbedderConfig, client embeddings.EmbedderClient) (*Embedder, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	emb, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		Config:   config,
		embedder: emb,
	}, nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedder.EmbedDocuments(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.EmbedQuery(ctx, text)
}

// EmbedChunks fills in the Embedding of every processed document, one vector
// per chunk.
func (e *Embedder) EmbedChunks(ctx context.Context, docs []models.ProcessedDocument) error {
	for i := range docs {
		vectors, err := e.embedder.EmbedDocuments(ctx, docs[i].Chunks)
		if err != nil {
			return fmt.Errorf("failed to create embeddings for %s: %w", docs[i].Source, err)
		}
		if len(vectors) != len(docs[i].Chunks) {
			return fmt.Errorf("embedding count mismatch for %s: got %d, want %d",
				docs[i].Source, len(vectors), len(docs[i].Chunks))
		}
		docs[i].Embedding = vectors
	}
	return nil
}
