package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xhad/hragent/internal/models"
)

const textKey = "text"

type PineconeConfig struct {
	APIKey       string
	IndexName    string
	Namespace    string
	Dimension    int
	Metric       string
	Cloud        string
	Region       string
	BatchSize    int
	ReadyTimeout time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger
}

// indexAdmin is the control-plane surface of *pinecone.Client we use.
type indexAdmin interface {
	ListIndexes(ctx context.Context) ([]*pinecone.Index, error)
	DescribeIndex(ctx context.Context, name string) (*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
	DeleteIndex(ctx context.Context, name string) error
}

// indexData is the data-plane surface of *pinecone.IndexConnection we use.
type indexData interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DeleteAllVectorsInNamespace(ctx context.Context) error
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// PineconeStore keeps chunks in a serverless Pinecone index. Chunk text is
// stored in the vector metadata under "text".
type PineconeStore struct {
	config  PineconeConfig
	admin   indexAdmin
	connect func(host string) (indexData, error)
	logger  *zap.Logger

	mu   sync.Mutex
	conn indexData
}

func NewPinecone(config PineconeConfig) (*PineconeStore, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: config.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	connect := func(host string) (indexData, error) {
		return client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: config.Namespace})
	}
	return newPineconeStore(config, client, connect), nil
}

func newPineconeStore(config PineconeConfig, admin indexAdmin, connect func(string) (indexData, error)) *PineconeStore {
	if config.Dimension == 0 {
		config.Dimension = 1536
	}
	if config.Metric == "" {
		config.Metric = "cosine"
	}
	if config.Cloud == "" {
		config.Cloud = "aws"
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.ReadyTimeout == 0 {
		config.ReadyTimeout = 2 * time.Minute
	}
	if config.PollInterval == 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &PineconeStore{
		config:  config,
		admin:   admin,
		connect: connect,
		logger:  config.Logger.With(zap.String("index", config.IndexName)),
	}
}

// EnsureIndex creates the index when it is missing and recreates it when its
// dimension does not match the embedding model.
func (ps *PineconeStore) EnsureIndex(ctx context.Context) error {
	idx, err := ps.findIndex(ctx)
	if err != nil {
		return err
	}

	if idx != nil && int(idx.Dimension) != ps.config.Dimension {
		ps.logger.Warn("index dimension mismatch, recreating",
			zap.Int32("have", idx.Dimension), zap.Int("want", ps.config.Dimension))
		ps.resetConn()
		if err := ps.admin.DeleteIndex(ctx, ps.config.IndexName); err != nil {
			return fmt.Errorf("failed to delete index %s: %w", ps.config.IndexName, err)
		}
		idx = nil
	}

	if idx == nil {
		ps.logger.Info("creating index", zap.Int("dimension", ps.config.Dimension))
		_, err := ps.admin.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
			Name:      ps.config.IndexName,
			Dimension: int32(ps.config.Dimension),
			Metric:    pinecone.IndexMetric(ps.config.Metric),
			Cloud:     pinecone.Cloud(ps.config.Cloud),
			Region:    ps.config.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", ps.config.IndexName, err)
		}
	}

	_, err = ps.waitReady(ctx)
	return err
}

func (ps *PineconeStore) waitReady(ctx context.Context) (*pinecone.Index, error) {
	ctx, cancel := context.WithTimeout(ctx, ps.config.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(ps.config.PollInterval)
	defer ticker.Stop()

	for {
		idx, err := ps.admin.DescribeIndex(ctx, ps.config.IndexName)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", ps.config.IndexName, err)
		}
		if idx.Status != nil && idx.Status.Ready {
			return idx, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("index %s not ready: %w", ps.config.IndexName, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (ps *PineconeStore) findIndex(ctx context.Context) (*pinecone.Index, error) {
	indexes, err := ps.admin.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx != nil && idx.Name == ps.config.IndexName {
			return idx, nil
		}
	}
	return nil, nil
}

// connection returns the data-plane connection, dialing the index host on
// first use.
func (ps *PineconeStore) connection(ctx context.Context) (indexData, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.conn != nil {
		return ps.conn, nil
	}

	idx, err := ps.findIndex(ctx)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, ps.config.IndexName)
	}

	conn, err := ps.connect(idx.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", ps.config.IndexName, err)
	}
	ps.conn = conn
	return conn, nil
}

func (ps *PineconeStore) resetConn() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.conn != nil {
		ps.conn.Close()
		ps.conn = nil
	}
}

func (ps *PineconeStore) DeleteAll(ctx context.Context) error {
	conn, err := ps.connection(ctx)
	if err != nil {
		return err
	}
	if err := conn.DeleteAllVectorsInNamespace(ctx); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

func (ps *PineconeStore) Store(ctx context.Context, docs []models.ProcessedDocument) error {
	conn, err := ps.connection(ctx)
	if err != nil {
		return err
	}

	var batch []*pinecone.Vector
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := conn.UpsertVectors(ctx, batch); err != nil {
			return fmt.Errorf("failed to upsert vectors: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for _, doc := range docs {
		if len(doc.Embedding) != len(doc.Chunks) {
			return fmt.Errorf("document %s has %d chunks but %d embeddings", doc.Source, len(doc.Chunks), len(doc.Embedding))
		}
		for i, chunk := range doc.Chunks {
			meta := sanitizeMetadata(doc.Metadata)
			meta[textKey] = chunk
			meta["source"] = doc.Source
			meta["title"] = doc.Title
			meta["chunk_index"] = float64(i)

			metadata, err := structpb.NewStruct(meta)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", doc.Source, err)
			}

			batch = append(batch, &pinecone.Vector{
				Id:       chunkID(doc.ID, i),
				Values:   doc.Embedding[i],
				Metadata: metadata,
			})
			if len(batch) >= ps.config.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}

	return flush()
}

func (ps *PineconeStore) Query(ctx context.Context, embedding []float32, limit int) ([]models.Document, error) {
	conn, err := ps.connection(ctx)
	if err != nil {
		return nil, err
	}

	res, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          embedding,
		TopK:            uint32(limit),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	docs := make([]models.Document, 0, len(res.Matches))
	for _, match := range res.Matches {
		if match == nil || match.Vector == nil {
			continue
		}
		meta := map[string]interface{}{}
		if match.Vector.Metadata != nil {
			meta = match.Vector.Metadata.AsMap()
		}
		content := metaString(meta, textKey)
		delete(meta, textKey)

		docs = append(docs, models.Document{
			ID:       match.Vector.Id,
			Source:   metaString(meta, "source"),
			Title:    metaString(meta, "title"),
			Content:  content,
			Metadata: meta,
			Score:    match.Score,
		})
	}
	return docs, nil
}

func (ps *PineconeStore) Available(ctx context.Context) (bool, error) {
	idx, err := ps.findIndex(ctx)
	if err != nil {
		return false, err
	}
	return idx != nil, nil
}

func (ps *PineconeStore) Stats(ctx context.Context) (models.IndexStats, error) {
	stats := models.IndexStats{Name: ps.config.IndexName}

	conn, err := ps.connection(ctx)
	if err != nil {
		return stats, err
	}
	res, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to describe index stats: %w", err)
	}
	stats.Dimension = int(res.Dimension)
	stats.VectorCount = int64(res.TotalVectorCount)
	return stats, nil
}

func (ps *PineconeStore) Close() {
	ps.resetConn()
}
