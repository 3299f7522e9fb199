package processor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/xhad/hragent/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Processor splits loaded documents into overlapping chunks ready for
// embedding.
type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.RecursiveCharacter
}

func NewWithConfig(config ProcessorConfig) Processor {
	// A zero overlap is a valid setting once a chunk size is given.
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = 200
		}
	}

	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
	}
	if len(config.Separators) > 0 {
		opts = append(opts, textsplitter.WithSeparators(config.Separators))
	}

	return Processor{
		config:   config,
		splitter: textsplitter.NewRecursiveCharacter(opts...),
	}
}

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	processed := make([]models.ProcessedDocument, 0, len(docs))

	for _, doc := range docs {
		chunks, err := p.splitIntoChunks(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", doc.Source, err)
		}
		if len(chunks) == 0 {
			continue
		}

		doc.Title = sanitizeUTF8(doc.Title)
		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}

	return processed, nil
}

func (p *Processor) splitIntoChunks(text string) ([]string, error) {
	parts, err := p.splitter.SplitText(sanitizeUTF8(text))
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks, nil
}

// CountChunks returns the total number of chunks across docs.
func CountChunks(docs []models.ProcessedDocument) int {
	n := 0
	for _, doc := range docs {
		n += len(doc.Chunks)
	}
	return n
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
