package models

// Document is a loaded source file (or scraped page) before chunking, and a
// retrieved chunk after a vector query.
type Document struct {
	ID       string
	Source   string
	Title    string
	Content  string
	Metadata map[string]interface{}
	Score    float32
}

// ProcessedDocument holds a document's chunks and one embedding per chunk.
type ProcessedDocument struct {
	Document
	Chunks    []string
	Embedding [][]float32
}

// Source is a citation returned alongside an answer.
type Source struct {
	Name     string                 `json:"name"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float32                `json:"score"`
}

type Answer struct {
	HTML     string   `json:"answer"`
	Markdown string   `json:"markdown"`
	Sources  []Source `json:"sources"`
}

// Flash is a user-facing status line produced while updating the index.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type UpdateResult struct {
	Documents int     `json:"documents"`
	Chunks    int     `json:"chunks"`
	Messages  []Flash `json:"messages"`
}

// IndexStats describes the state of the vector index.
type IndexStats struct {
	Name        string `json:"name"`
	Dimension   int    `json:"dimension"`
	VectorCount int64  `json:"vector_count"`
}
