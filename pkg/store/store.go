package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/hragent/internal/types"
	"github.com/xhad/hragent/pkg/config"
)

// ErrIndexNotFound is returned when the configured index has not been created yet.
var ErrIndexNotFound = errors.New("vector index not found")

// Open builds the vector store selected by cfg.Vector.Backend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (types.VectorStore, error) {
	switch cfg.Vector.Backend {
	case config.BackendPinecone:
		return NewPinecone(PineconeConfig{
			APIKey:       cfg.Pinecone.APIKey,
			IndexName:    cfg.Vector.IndexName,
			Namespace:    cfg.Vector.Namespace,
			Dimension:    cfg.Vector.Dimension,
			Metric:       cfg.Vector.Metric,
			Cloud:        cfg.Pinecone.Cloud,
			Region:       cfg.Pinecone.Region,
			BatchSize:    cfg.Vector.BatchSize,
			ReadyTimeout: cfg.Pinecone.ReadyTimeout,
			Logger:       logger,
		})
	case config.BackendPGVector:
		return NewWithConfig(ctx, VectorStoreConfig{
			ConnString:  cfg.Database.URL,
			TableName:   cfg.Database.TableName,
			VectorDim:   cfg.Vector.Dimension,
			BatchSize:   cfg.Vector.BatchSize,
			SearchLimit: cfg.Vector.TopK,
			Logger:      logger,
		})
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}

// sanitizeMetadata keeps values every backend can encode: strings, numbers,
// booleans and nested maps/slices of those. Anything else is stringified.
func sanitizeMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if v == nil {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string, bool, float64:
		return val
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint32:
		return float64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case map[string]interface{}:
		return sanitizeMetadata(val)
	case []interface{}:
		items := make([]interface{}, 0, len(val))
		for _, item := range val {
			if item != nil {
				items = append(items, sanitizeValue(item))
			}
		}
		return items
	case []string:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = item
		}
		return items
	default:
		return fmt.Sprint(val)
	}
}

func metaString(meta map[string]interface{}, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func chunkID(docID string, i int) string {
	return fmt.Sprintf("%s_%d", docID, i)
}
