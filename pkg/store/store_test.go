package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xhad/hragent/pkg/config"
)

func TestSanitizeMetadata(t *testing.T) {
	type custom struct{ A int }

	in := map[string]interface{}{
		"page":    3,
		"total":   int64(9),
		"score":   float32(0.5),
		"name":    "jane.pdf",
		"ok":      true,
		"when":    time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		"tags":    []string{"go", "sql"},
		"nested":  map[string]interface{}{"depth": 1},
		"list":    []interface{}{1, nil, "x"},
		"custom":  custom{A: 1},
		"dropped": nil,
	}

	out := sanitizeMetadata(in)
	assert.Equal(t, float64(3), out["page"])
	assert.Equal(t, float64(9), out["total"])
	assert.Equal(t, float64(0.5), out["score"])
	assert.Equal(t, "jane.pdf", out["name"])
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "2026-10-19T00:00:00Z", out["when"])
	assert.Equal(t, []interface{}{"go", "sql"}, out["tags"])
	assert.Equal(t, map[string]interface{}{"depth": float64(1)}, out["nested"])
	assert.Equal(t, []interface{}{float64(1), "x"}, out["list"])
	assert.Equal(t, "{1}", out["custom"])
	assert.NotContains(t, out, "dropped")
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Vector.Backend = "chroma"

	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown vector backend")
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "abc_3", chunkID("abc", 3))
}
