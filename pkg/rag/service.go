package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xhad/hragent/internal/models"
	"github.com/xhad/hragent/internal/types"
	"github.com/xhad/hragent/pkg/cache"
	"github.com/xhad/hragent/pkg/metrics"
	"github.com/xhad/hragent/pkg/processor"
	"github.com/xhad/hragent/pkg/render"
	"github.com/xhad/hragent/pkg/scraper"
)

var (
	ErrInvalidPath      = errors.New("invalid path")
	ErrNoDocuments      = errors.New("no documents found")
	ErrEmptyQuestion    = errors.New("no question provided")
	ErrStoreUnavailable = errors.New("vector store not available")
	ErrIndexFailed      = errors.New("error creating vector store")
)

const (
	previewRunes = 200
	defaultTopK  = 5
)

// Embedder embeds questions and whole batches of processed chunks.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedChunks(ctx context.Context, docs []models.ProcessedDocument) error
}

// Generator produces a markdown answer from a question and retrieved chunks.
type Generator interface {
	Chat(ctx context.Context, question string, docs []models.Document) (string, error)
	ChatStream(ctx context.Context, question string, docs []models.Document, onChunk func(string) error) (string, error)
}

type ServiceConfig struct {
	Loader    types.Loader
	Processor types.Processor
	Embedder  Embedder
	Chat      Generator
	Store     types.VectorStore
	Cache     types.AnswerCache
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// DefaultPath is indexed when an update names no path (FILE_PATH).
	DefaultPath string
	TopK        int
	// Scraper is the template used for http(s) update paths; BaseURL is
	// filled in per request.
	Scraper scraper.ScraperConfig
}

// Service glues loading, splitting, embedding, storage and generation
// together. It is safe for concurrent use as long as its components are.
type Service struct {
	config  ServiceConfig
	store   types.VectorStore
	cache   types.AnswerCache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewWithConfig(config ServiceConfig) (*Service, error) {
	switch {
	case config.Loader == nil:
		return nil, errors.New("loader is required")
	case config.Processor == nil:
		return nil, errors.New("processor is required")
	case config.Embedder == nil:
		return nil, errors.New("embedder is required")
	case config.Chat == nil:
		return nil, errors.New("chat engine is required")
	case config.Store == nil:
		return nil, errors.New("vector store is required")
	}
	if config.Cache == nil {
		config.Cache = cache.Noop{}
	}
	if config.Metrics == nil {
		config.Metrics = metrics.New()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.TopK <= 0 {
		config.TopK = defaultTopK
	}
	if config.Scraper.Logger == nil {
		config.Scraper.Logger = config.Logger.Named("scraper")
	}

	return &Service{
		config:  config,
		store:   config.Store,
		cache:   config.Cache,
		metrics: config.Metrics,
		logger:  config.Logger,
	}, nil
}

func (s *Service) Store() types.VectorStore { return s.store }

func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Close releases the vector store and cache connections.
func (s *Service) Close() {
	s.store.Close()
	if err := s.cache.Close(); err != nil {
		s.logger.Warn("failed to close cache", zap.Error(err))
	}
}

// UpdateVectorStore replaces the index contents with the documents found at
// path. The returned result carries the user-facing messages even when an
// error is returned.
func (s *Service) UpdateVectorStore(ctx context.Context, path string) (*models.UpdateResult, error) {
	result := &models.UpdateResult{}
	err := s.updateVectorStore(ctx, strings.TrimSpace(path), result)

	outcome := "success"
	switch {
	case errors.Is(err, ErrInvalidPath):
		outcome = "invalid_path"
	case errors.Is(err, ErrNoDocuments):
		outcome = "no_documents"
	case err != nil:
		outcome = "error"
	}
	s.metrics.IndexUpdates.WithLabelValues(outcome).Inc()
	return result, err
}

func (s *Service) updateVectorStore(ctx context.Context, path string, result *models.UpdateResult) error {
	if path == "" {
		path = s.config.DefaultPath
	}
	isURL := scraper.IsURL(path)
	if !isURL {
		if _, err := os.Stat(path); path == "" || err != nil {
			result.Messages = append(result.Messages, flash("error", "Invalid path: %s", path))
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}

	// From here on the index may change, so cached answers are dropped on
	// every exit, and again right after a successful clear.
	defer s.invalidateCache(ctx)

	start := time.Now()
	if err := s.store.DeleteAll(ctx); err != nil {
		s.logger.Error("error deleting documents", zap.Error(err))
	} else {
		s.invalidateCache(ctx)
		result.Messages = append(result.Messages, flash("info", "Existing documents cleared."))
	}
	s.metrics.ObserveStage("clear", start)

	docs, err := s.load(ctx, path, isURL)
	if err != nil {
		result.Messages = append(result.Messages, flash("error", "Error: %v", err))
		return err
	}
	if len(docs) == 0 {
		result.Messages = append(result.Messages, flash("warning", "No documents found."))
		return ErrNoDocuments
	}

	chunks, err := s.index(ctx, docs)
	if err != nil {
		s.logger.Error("error creating vector store", zap.Error(err))
		result.Messages = append(result.Messages, flash("error", "Error creating vector store."))
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}

	result.Documents = len(docs)
	result.Chunks = chunks
	s.metrics.DocumentsIndexed.Add(float64(len(docs)))
	s.metrics.ChunksIndexed.Add(float64(chunks))

	s.logger.Info("created vector store",
		zap.String("path", path),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", chunks))
	result.Messages = append(result.Messages, flash("success", "Successfully updated with %d documents.", len(docs)))
	return nil
}

func (s *Service) invalidateCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate answer cache", zap.Error(err))
	}
}

func (s *Service) load(ctx context.Context, path string, isURL bool) ([]models.Document, error) {
	start := time.Now()
	defer s.metrics.ObserveStage("load", start)

	if !isURL {
		return s.config.Loader.Load(ctx, path)
	}

	config := s.config.Scraper
	config.BaseURL = path
	sc, err := scraper.NewWithConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scraper: %w", err)
	}
	docs, err := sc.Scrape(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape %s: %w", path, err)
	}
	return docs, nil
}

// index ensures the index exists, then splits, embeds and upserts docs. It
// returns the number of chunks stored.
func (s *Service) index(ctx context.Context, docs []models.Document) (int, error) {
	start := time.Now()
	if err := s.store.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	s.metrics.ObserveStage("ensure_index", start)

	start = time.Now()
	processed, err := s.config.Processor.Process(docs)
	if err != nil {
		return 0, fmt.Errorf("failed to split documents: %w", err)
	}
	s.metrics.ObserveStage("split", start)

	chunks := processor.CountChunks(processed)
	if chunks == 0 {
		return 0, errors.New("documents produced no chunks")
	}

	start = time.Now()
	if err := s.config.Embedder.EmbedChunks(ctx, processed); err != nil {
		return 0, err
	}
	s.metrics.ObserveStage("embed", start)

	start = time.Now()
	if err := s.store.Store(ctx, processed); err != nil {
		return 0, err
	}
	s.metrics.ObserveStage("upsert", start)

	return chunks, nil
}

// Ask answers question from the top-k retrieved chunks.
func (s *Service) Ask(ctx context.Context, question string) (*models.Answer, error) {
	return s.ask(ctx, question, nil)
}

// AskStream is Ask with the model output handed to onChunk as it streams.
// Cached answers are replayed as a single chunk.
func (s *Service) AskStream(ctx context.Context, question string, onChunk func(string) error) (*models.Answer, error) {
	if onChunk == nil {
		onChunk = func(string) error { return nil }
	}
	return s.ask(ctx, question, onChunk)
}

func (s *Service) ask(ctx context.Context, question string, onChunk func(string) error) (answer *models.Answer, err error) {
	defer func() {
		outcome := "success"
		switch {
		case errors.Is(err, ErrEmptyQuestion), errors.Is(err, ErrStoreUnavailable):
			outcome = "rejected"
		case err != nil:
			outcome = "error"
		}
		s.metrics.ChatRequests.WithLabelValues(outcome).Inc()
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	ok, err := s.store.Available(ctx)
	if err != nil {
		s.logger.Error("error getting vector store", zap.Error(err))
		return nil, ErrStoreUnavailable
	}
	if !ok {
		return nil, ErrStoreUnavailable
	}

	// The key is resolved before retrieval so the answer is stored under the
	// generation it was computed against.
	key, err := s.cache.Key(ctx, question)
	if err != nil {
		s.logger.Warn("answer cache unavailable", zap.Error(err))
	}
	if key != "" {
		if cached, hit := s.cache.Get(ctx, key); hit {
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
			if onChunk != nil {
				if err := onChunk(cached.Markdown); err != nil {
					return nil, err
				}
			}
			return cached, nil
		}
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	docs, err := s.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var markdown string
	if onChunk != nil {
		markdown, err = s.config.Chat.ChatStream(ctx, question, docs, onChunk)
	} else {
		markdown, err = s.config.Chat.Chat(ctx, question, docs)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveStage("generate", start)

	answer = &models.Answer{
		HTML:     render.MarkdownToHTML(markdown),
		Markdown: markdown,
		Sources:  Sources(docs),
	}
	if key != "" {
		s.cache.Set(ctx, key, answer)
	}
	return answer, nil
}

// Retrieve embeds question and returns the TopK most similar chunks.
func (s *Service) Retrieve(ctx context.Context, question string) ([]models.Document, error) {
	start := time.Now()
	defer s.metrics.ObserveStage("retrieve", start)

	vector, err := s.config.Embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	docs, err := s.store.Query(ctx, vector, s.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	return docs, nil
}

// Sources turns retrieved chunks into citations with a short content preview.
func Sources(docs []models.Document) []models.Source {
	sources := make([]models.Source, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, models.Source{
			Name:     sourceName(doc),
			Content:  Preview(doc.Content),
			Metadata: doc.Metadata,
			Score:    doc.Score,
		})
	}
	return sources
}

// Preview truncates content to its first 200 runes, appending "..." when cut.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	return string([]rune(content)[:previewRunes]) + "..."
}

func sourceName(doc models.Document) string {
	if name, ok := doc.Metadata["file_name"].(string); ok && name != "" {
		return name
	}
	if doc.Title != "" {
		return doc.Title
	}
	return doc.Source
}

func flash(category, format string, args ...interface{}) models.Flash {
	return models.Flash{Category: category, Message: fmt.Sprintf(format, args...)}
}
