package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/hragent/internal/models"
	"github.com/xhad/hragent/pkg/llm"
)

type fakeEmbeddingClient struct {
	calls int
	texts []string
	err   error
}

func (c *fakeEmbeddingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1, 0}
	}
	return out, nil
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-ada-002", emb.Config.Model)
	assert.Equal(t, 100, emb.Config.BatchSize)
}

func TestEmbedChunks(t *testing.T) {
	client := &fakeEmbeddingClient{}
	emb, err := llm.NewEmbedderWithClient(llm.EmbedderConfig{BatchSize: 2}, client)
	require.NoError(t, err)

	docs := []models.ProcessedDocument{
		{Chunks: []string{"first chunk", "second chunk", "third chunk"}},
		{Chunks: []string{"another document"}},
	}

	require.NoError(t, emb.EmbedChunks(context.Background(), docs))

	require.Len(t, docs[0].Embedding, 3)
	require.Len(t, docs[1].Embedding, 1)
	assert.Equal(t, []float32{11, 1, 0}, docs[0].Embedding[0])
	assert.Equal(t, []float32{16, 1, 0}, docs[1].Embedding[0])
	assert.Equal(t, 3, client.calls, "three chunks with batch size two plus one more document")
}

func TestEmbedQuery(t *testing.T) {
	client := &fakeEmbeddingClient{}
	emb, err := llm.NewEmbedderWithClient(llm.EmbedderConfig{}, client)
	require.NoError(t, err)

	vec, err := emb.EmbedQuery(context.Background(), "who knows Go?")
	require.NoError(t, err)
	assert.Equal(t, []float32{13, 1, 0}, vec)
}

func TestEmbedChunksError(t *testing.T) {
	client := &fakeEmbeddingClient{err: errors.New("invalid api key")}
	emb, err := llm.NewEmbedderWithClient(llm.EmbedderConfig{}, client)
	require.NoError(t, err)

	err = emb.EmbedChunks(context.Background(), []models.ProcessedDocument{{Document: models.Document{Source: "a.txt"}, Chunks: []string{"x"}}})
	assert.ErrorContains(t, err, "a.txt")
	assert.ErrorContains(t, err, "invalid api key")
}
