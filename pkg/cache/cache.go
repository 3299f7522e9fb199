// Package cache stores rendered answers in Redis. Keys are scoped by an index
// generation counter so that re-indexing invalidates every cached answer at
// once without scanning keys.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xhad/hragent/internal/models"
	"github.com/xhad/hragent/internal/types"
)

const (
	keyPrefix     = "hragent:answer:"
	generationKey = "hragent:generation"
	defaultTTL    = time.Hour
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New returns a Redis-backed cache, or a no-op cache when redisURL is empty.
func New(redisURL string, ttl time.Duration, logger *zap.Logger) (types.AnswerCache, error) {
	if redisURL == "" {
		return Noop{}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts), ttl, logger), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Key resolves the cache key of question under the current generation.
func (c *RedisCache) Key(ctx context.Context, question string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read cache generation: %w", err)
	}
	return answerKey(gen, question), nil
}

// Get never fails: Redis errors are logged and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*models.Answer, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache get failed", zap.Error(err))
		return nil, false
	}

	var answer models.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		c.logger.Warn("cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &answer, true
}

func (c *RedisCache) Set(ctx context.Context, key string, answer *models.Answer) {
	data, err := json.Marshal(answer)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.Error(err))
	}
}

// Invalidate bumps the generation; old entries expire on their own TTL.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func answerKey(generation int64, question string) string {
	sum := sha256.Sum256([]byte(normalize(question)))
	return fmt.Sprintf("%s%d:%s", keyPrefix, generation, hex.EncodeToString(sum[:]))
}

// normalize lowercases and collapses whitespace.
func normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// Noop is used when no Redis URL is configured.
type Noop struct{}

func (Noop) Key(context.Context, string) (string, error)        { return "", nil }
func (Noop) Get(context.Context, string) (*models.Answer, bool) { return nil, false }
func (Noop) Set(context.Context, string, *models.Answer)        {}
func (Noop) Invalidate(context.Context) error                   { return nil }
func (Noop) Close() error                                       { return nil }
