package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/xhad/hragent/internal/models"
)

type VectorStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	BatchSize   int
	SearchLimit int
	Logger      *zap.Logger
}

// VectorStore keeps chunks in a Postgres table with a pgvector column.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	table  string
	logger *zap.Logger
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &VectorStore{
		config: config,
		pool:   pool,
		table:  pgx.Identifier{config.TableName}.Sanitize(),
		logger: config.Logger.With(zap.String("table", config.TableName)),
	}, nil
}

// EnsureIndex creates the extension, table and hnsw index. A table whose
// embedding column has the wrong dimension is dropped and recreated.
func (vs *VectorStore) EnsureIndex(ctx context.Context) error {
	// Enable pgvector extension
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	var dim int
	err := vs.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = to_regclass($1) AND attname = 'embedding'`,
		vs.table).Scan(&dim)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to inspect table: %w", err)
	case dim != vs.config.VectorDim:
		vs.logger.Warn("embedding dimension mismatch, recreating table",
			zap.Int("have", dim), zap.Int("want", vs.config.VectorDim))
		if _, err := vs.pool.Exec(ctx, "DROP TABLE "+vs.table); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT,
			content TEXT,
			chunk_index INTEGER,
			embedding vector(%d),
			metadata JSONB
		)`, vs.table, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize(), vs.table)

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *VectorStore) DeleteAll(ctx context.Context) error {
	ok, err := vs.Available(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, vs.config.TableName)
	}
	if _, err := vs.pool.Exec(ctx, "TRUNCATE "+vs.table); err != nil {
		return fmt.Errorf("failed to truncate table: %w", err)
	}
	return nil
}

func (vs *VectorStore) Store(ctx context.Context, docs []models.ProcessedDocument) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, title, content, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.table)

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	send := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		batch = &pgx.Batch{}
		return nil
	}

	for _, doc := range docs {
		if len(doc.Embedding) != len(doc.Chunks) {
			return fmt.Errorf("document %s has %d chunks but %d embeddings", doc.Source, len(doc.Chunks), len(doc.Embedding))
		}
		metadata := sanitizeMetadata(doc.Metadata)

		for i, chunk := range doc.Chunks {
			batch.Queue(stmt,
				chunkID(doc.ID, i),
				doc.Source,
				doc.Title,
				chunk,
				i,
				pgvector.NewVector(doc.Embedding[i]),
				metadata,
			)
			if batch.Len() >= vs.config.BatchSize {
				if err := send(); err != nil {
					return err
				}
			}
		}
	}
	if err := send(); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (vs *VectorStore) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.Document, error) {
	if limit == 0 {
		limit = vs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, source, title, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.table)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var (
			doc   models.Document
			title *string
			score float64
		)
		if err := rows.Scan(&doc.ID, &doc.Source, &title, &doc.Content, &doc.Metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if title != nil {
			doc.Title = *title
		}
		doc.Score = float32(score)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (vs *VectorStore) Available(ctx context.Context) (bool, error) {
	var exists bool
	if err := vs.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", vs.table).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table: %w", err)
	}
	return exists, nil
}

func (vs *VectorStore) Stats(ctx context.Context) (models.IndexStats, error) {
	stats := models.IndexStats{Name: vs.config.TableName, Dimension: vs.config.VectorDim}
	ok, err := vs.Available(ctx)
	if err != nil {
		return stats, err
	}
	if !ok {
		return stats, fmt.Errorf("%w: %s", ErrIndexNotFound, vs.config.TableName)
	}
	if err := vs.pool.QueryRow(ctx, "SELECT count(*) FROM "+vs.table).Scan(&stats.VectorCount); err != nil {
		return stats, fmt.Errorf("failed to count rows: %w", err)
	}
	return stats, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
