package processor_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/hragent/internal/models"
	"github.com/xhad/hragent/pkg/processor"
)

func TestProcessor_Process(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    50,
		ChunkOverlap: 10,
	})

	documents := []models.Document{
		{
			ID:      "resume-1",
			Source:  "resumes/jane.txt",
			Content: "Jane Doe is a platform engineer.\n\nShe has run Kubernetes clusters for six years and mentors junior engineers.",
		},
		{ID: "blank", Content: "   \n\n  "},
	}

	processed, err := p.Process(documents)
	require.NoError(t, err)
	require.Len(t, processed, 1, "documents without text are dropped")

	doc := processed[0]
	assert.Equal(t, "resume-1", doc.ID)
	assert.Greater(t, len(doc.Chunks), 1)
	assert.Equal(t, "Jane Doe is a platform engineer.", doc.Chunks[0])
	for _, chunk := range doc.Chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
		assert.Equal(t, strings.TrimSpace(chunk), chunk)
	}
	assert.Equal(t, len(doc.Chunks), processor.CountChunks(processed))
}

func TestProcessor_DefaultsKeepShortDocumentWhole(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	processed, err := p.Process([]models.Document{{Content: "Short job description for a recruiter."}})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, []string{"Short job description for a recruiter."}, processed[0].Chunks)
}

func TestProcessor_SanitizesInvalidUTF8(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	processed, err := p.Process([]models.Document{{Title: "bad\xfftitle", Content: "valid\xff text"}})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, "badtitle", processed[0].Title)
	assert.Equal(t, "valid text", processed[0].Chunks[0])
}

func TestProcessor_ZeroOverlap(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    10,
		ChunkOverlap: 0,
	})

	text := "one two three four five six"
	processed, err := p.Process([]models.Document{{Content: text}})
	require.NoError(t, err)
	require.Len(t, processed, 1)

	chunks := processed[0].Chunks
	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, " "), "no word is repeated across chunks")
}
