package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/tmc/langchaingo/schema"
)

func readDocx(_ context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, meta, err := docconv.ConvertDocx(f)
	if err != nil {
		return nil, fmt.Errorf("failed to convert docx: %w", err)
	}

	text := normalizeLines(raw)
	if text == "" {
		return nil, fmt.Errorf("no text found in %s", path)
	}

	metadata := map[string]any{}
	if title := strings.TrimSpace(meta["title"]); title != "" {
		metadata["title"] = title
	}
	return []schema.Document{{PageContent: text, Metadata: metadata}}, nil
}

// normalizeLines trims every line and drops blank ones, leaving one
// paragraph, break or tab stop per line.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
