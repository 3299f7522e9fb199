package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgPkg "github.com/xhad/hragent/pkg/config"
)

func TestMask(t *testing.T) {
	assert.Equal(t, "***", mask("abc"))
	assert.Equal(t, "**********...cdef", mask("sk-abcdef"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview("  a\n\tb ", 10))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}

func TestDimensionAdvice(t *testing.T) {
	assert.Empty(t, dimensionAdvice(1536, 1536))

	advice := dimensionAdvice(3072, 1536)
	assert.Contains(t, advice, "set vector.dimension: 3072")
	assert.Contains(t, advice, "vector.dimension is 1536")
}

func TestCheckLoading(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resume_john_smith.txt"), []byte("John Smith, Go developer"), 0o644))

	cfg := &cfgPkg.Config{}
	assert.False(t, checkLoading(context.Background(), cfg, nil))
	assert.True(t, checkLoading(context.Background(), cfg, []string{dir}))
	assert.False(t, checkLoading(context.Background(), cfg, []string{t.TempDir()}))
}

func TestCheckSplitting(t *testing.T) {
	assert.True(t, checkSplitting(context.Background(), nil, nil))
}

func TestRunMissingConfigFile(t *testing.T) {
	err := run(context.Background(), options{configPath: filepath.Join(t.TempDir(), "missing.yaml")}, []string{"ask", "who?"})
	assert.ErrorContains(t, err, "error reading config file")
}
