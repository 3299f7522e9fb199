package types

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/hragent/internal/models"
)

// Core interfaces
type VectorStore interface {
	EnsureIndex(ctx context.Context) error
	DeleteAll(ctx context.Context) error
	Store(ctx context.Context, docs []models.ProcessedDocument) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.Document, error)
	Available(ctx context.Context) (bool, error)
	Stats(ctx context.Context) (models.IndexStats, error)
	Close()
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChatModel is the subset of llms.Model the chat engine needs.
type ChatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type Loader interface {
	Load(ctx context.Context, path string) ([]models.Document, error)
}

type Processor interface {
	Process(docs []models.Document) ([]models.ProcessedDocument, error)
}

// AnswerCache stores answers per index generation. Key pins the current
// generation, so an answer computed before an invalidation is stored under
// the old generation and never served afterwards.
type AnswerCache interface {
	Key(ctx context.Context, question string) (string, error)
	Get(ctx context.Context, key string) (*models.Answer, bool)
	Set(ctx context.Context, key string, answer *models.Answer)
	Invalidate(ctx context.Context) error
	Close() error
}
