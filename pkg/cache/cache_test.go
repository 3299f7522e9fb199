package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/hragent/internal/models"
)

func TestNewWithoutURLIsNoop(t *testing.T) {
	c, err := New("", time.Minute, nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)

	key, err := c.Key(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, key)
	c.Set(context.Background(), key, &models.Answer{HTML: "<p>a</p>"})
	_, ok := c.Get(context.Background(), key)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(context.Background()))
	assert.NoError(t, c.Close())
}

func TestNewInvalidURL(t *testing.T) {
	_, err := New("http://not-redis", time.Minute, nil)
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestAnswerKey(t *testing.T) {
	a := answerKey(3, "Who knows  Go?")
	b := answerKey(3, "  who knows go? ")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "hragent:answer:3:")
	assert.NotEqual(t, a, answerKey(4, "who knows go?"))
	assert.NotEqual(t, a, answerKey(3, "who knows rust?"))
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	ctx := context.Background()
	c := NewWithClient(redis.NewClient(opts), time.Minute, nil)
	defer c.Close()

	answer := &models.Answer{HTML: "<p>Jane</p>", Markdown: "Jane", Sources: []models.Source{{Name: "jane.txt"}}}
	before, err := c.Key(ctx, "best candidate?")
	require.NoError(t, err)
	c.Set(ctx, before, answer)

	key, err := c.Key(ctx, "Best  candidate?")
	require.NoError(t, err)
	assert.Equal(t, before, key)
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, answer, got)

	require.NoError(t, c.Invalidate(ctx))
	after, err := c.Key(ctx, "best candidate?")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	_, ok = c.Get(ctx, after)
	assert.False(t, ok)

	// An answer computed against the old generation lands under the old key.
	c.Set(ctx, before, answer)
	_, ok = c.Get(ctx, after)
	assert.False(t, ok)
}
